package visibility

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/studycat-io/studycat/internal/db"
	"github.com/studycat-io/studycat/internal/domain"
	"github.com/studycat-io/studycat/internal/repository/study"
)

func makeStudy(t *testing.T, status domain.Status, owners ...string) domain.Study {
	t.Helper()
	return domain.ReconstructStudy(
		"hum0001", domain.Text{EN: "Liver cohort"}, domain.Text{}, domain.Text{},
		status, owners, nil, "", "", "",
	)
}

func TestStatusFilter(t *testing.T) {
	published := db.Term{Field: study.FieldStatus, Value: "published"}

	if got := StatusFilter(domain.Actor{ID: "root@org", Admin: true}); got != nil {
		t.Errorf("admins must be unrestricted, got %v", got)
	}

	if diff := cmp.Diff(db.Filter(published), StatusFilter(domain.Anonymous())); diff != "" {
		t.Errorf("anonymous filter mismatch (-want +got):\n%s", diff)
	}

	want := db.Filter(db.Or{Filters: []db.Filter{
		published,
		db.Term{Field: study.FieldOwners, Value: "me@org"},
	}})
	if diff := cmp.Diff(want, StatusFilter(domain.Actor{ID: "me@org"})); diff != "" {
		t.Errorf("authenticated filter mismatch (-want +got):\n%s", diff)
	}
}

func TestCanAccess(t *testing.T) {
	tests := []struct {
		name  string
		actor domain.Actor
		study domain.Study
		want  bool
	}{
		{"anonymous sees published", domain.Anonymous(), makeStudy(t, domain.StatusPublished), true},
		{"anonymous blocked from draft", domain.Anonymous(), makeStudy(t, domain.StatusDraft, "me@org"), false},
		{"owner sees own draft", domain.Actor{ID: "me@org"}, makeStudy(t, domain.StatusDraft, "me@org"), true},
		{"non-owner blocked from review", domain.Actor{ID: "you@org"}, makeStudy(t, domain.StatusReview, "me@org"), false},
		{"admin sees deleted", domain.Actor{ID: "root@org", Admin: true}, makeStudy(t, domain.StatusDeleted), true},
		{"owner sees own deleted", domain.Actor{ID: "me@org"}, makeStudy(t, domain.StatusDeleted, "me@org"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanAccess(tt.actor, &tt.study); got != tt.want {
				t.Errorf("CanAccess = %v, want %v", got, tt.want)
			}
		})
	}
}
