package store

import (
	"context"
	"testing"

	"github.com/jobmate/discovery-core/internal/model"
)

func TestCompanyStore_UpsertCompanyInsertsNewRecord(t *testing.T) {
	pool := newFakePool()
	cs := NewCompanyStore(pool)

	id, err := cs.UpsertCompany(context.Background(), &model.Company{
		Name: "Acme Corporation", Website: "https://acme.example", Industry: "software",
	})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("expected a generated id")
	}

	got, err := cs.GetCompanyByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Acme Corporation" || got.Website != "https://acme.example" {
		t.Errorf("GetCompanyByID = %+v, want matching inserted fields", got)
	}
}

func TestCompanyStore_UpsertCompanyUpdatesExistingByName(t *testing.T) {
	pool := newFakePool()
	cs := NewCompanyStore(pool)

	id, err := cs.UpsertCompany(context.Background(), &model.Company{Name: "Acme Corporation", Website: "https://old.acme.example"})
	if err != nil {
		t.Fatal(err)
	}

	priorityScore := 72.5
	employeeCount := 500
	id2, err := cs.UpsertCompany(context.Background(), &model.Company{
		Name: "Acme Corporation", Website: "https://acme.example", Tier: "A",
		PriorityScore: &priorityScore, EmployeeCount: &employeeCount,
	})
	if err != nil {
		t.Fatal(err)
	}
	if id2 != id {
		t.Fatalf("UpsertCompany second call id = %q, want same id %q (update, not insert)", id2, id)
	}

	got, err := cs.GetCompanyByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Website != "https://acme.example" || got.Tier != "A" {
		t.Errorf("GetCompanyByID = %+v, want updated website/tier", got)
	}
	if got.PriorityScore == nil || *got.PriorityScore != priorityScore {
		t.Errorf("PriorityScore = %v, want %v", got.PriorityScore, priorityScore)
	}
	if got.EmployeeCount == nil || *got.EmployeeCount != employeeCount {
		t.Errorf("EmployeeCount = %v, want %v", got.EmployeeCount, employeeCount)
	}
}

func TestCompanyStore_GetCompanyByNameIsCaseInsensitive(t *testing.T) {
	pool := newFakePool()
	cs := NewCompanyStore(pool)

	_, err := cs.UpsertCompany(context.Background(), &model.Company{Name: "Acme Corporation"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := cs.GetCompanyByName(context.Background(), "acme corporation")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a case-insensitive match")
	}
}

func TestCompanyStore_GetCompanyByNameMissReturnsNilNotError(t *testing.T) {
	pool := newFakePool()
	cs := NewCompanyStore(pool)

	got, err := cs.GetCompanyByName(context.Background(), "nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("GetCompanyByName = %+v, want nil for a miss", got)
	}
}

func TestCompanyStore_UpsertCompanyRequiresName(t *testing.T) {
	pool := newFakePool()
	cs := NewCompanyStore(pool)

	if _, err := cs.UpsertCompany(context.Background(), &model.Company{Website: "https://example.com"}); err == nil {
		t.Fatal("expected an error when company name is empty")
	}
}

func TestMatchStore_SaveMatchGeneratesID(t *testing.T) {
	pool := newFakePool()
	ms := NewMatchStore(pool)

	id, err := ms.SaveMatch(context.Background(), &model.Match{
		URL: "https://acme.example/jobs/1", Title: "Backend Engineer", MatchScore: 82,
		Breakdown: map[string]any{"title_match": 40},
	})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Error("expected SaveMatch to generate an id")
	}
}
