package processors

import (
	"context"
	"testing"

	"github.com/jobmate/discovery-core/internal/model"
)

func TestDispatcherRoutesByItemType(t *testing.T) {
	queue := newFakeQueue()
	deps := Dependencies{
		Queue:     queue,
		Sources:   newFakeSources(),
		Companies: newFakeCompanies(),
		Matches:   &fakeMatches{},
	}
	d := NewDispatcher(deps)

	companyItem := &model.QueueItem{Type: model.ItemCompany, Status: model.StatusProcessing, CompanyName: "Acme"}
	companyItem.ID = queue.put(companyItem)
	if err := d.Process(context.Background(), companyItem); err != nil {
		t.Fatalf("company dispatch: unexpected error: %v", err)
	}
	got, _ := queue.GetByID(context.Background(), companyItem.ID)
	if got.Status != model.StatusSuccess {
		t.Errorf("expected COMPANY item routed to CompanyProcessor to succeed, got %s", got.Status)
	}

	unknownItem := &model.QueueItem{Type: model.ItemType("BOGUS"), Status: model.StatusProcessing}
	unknownItem.ID = queue.put(unknownItem)
	if err := d.Process(context.Background(), unknownItem); err == nil {
		t.Fatal("expected an error for an unrecognized item type")
	}
}
