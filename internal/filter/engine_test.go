package filter

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/triage-service/internal/domain"
)

func strPtr(s string) *string { return &s }

func sampleReports() []domain.Report {
	base := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	reports := make([]domain.Report, 0, 10)
	for i := 0; i < 10; i++ {
		status := domain.ReportStatusSubmitted
		if i < 3 {
			status = domain.ReportStatusResolved
		}
		reports = append(reports, domain.Report{
			ID:        fmt.Sprintf("r-%d", i),
			Title:     fmt.Sprintf("Report %d", i),
			Category:  domain.CategoryGeneral,
			Priority:  domain.ReportPriorityMedium,
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * 24 * time.Hour),
		})
	}
	return reports
}

func apply(pred Predicate, reports []domain.Report) []domain.Report {
	var out []domain.Report
	for i := range reports {
		if pred(&reports[i]) {
			out = append(out, reports[i])
		}
	}
	return out
}

func TestEngine_BuildPredicate(t *testing.T) {
	engine := NewEngine(nil)
	reports := sampleReports()

	t.Run("EmptyCriteriaIsIdentity", func(t *testing.T) {
		assert.Len(t, apply(engine.BuildPredicate(Criteria{}), reports), len(reports))
		assert.Len(t, apply(engine.BuildPredicate(Criteria{Status: "  ", Search: ""}), reports), len(reports))
	})

	t.Run("StatusResolved", func(t *testing.T) {
		got := apply(engine.BuildPredicate(Criteria{Status: "resolved"}), reports)
		require.Len(t, got, 3)
		for _, r := range got {
			assert.Equal(t, domain.ReportStatusResolved, r.Status)
		}
	})

	t.Run("UnknownStatusMatchesNothing", func(t *testing.T) {
		assert.Empty(t, apply(engine.BuildPredicate(Criteria{Status: "escalated"}), reports))
		assert.Empty(t, apply(engine.BuildPredicate(Criteria{Priority: "critical"}), reports))
	})

	t.Run("SearchAcrossFields", func(t *testing.T) {
		items := []domain.Report{
			{ID: "a", Title: "Broken STREETLIGHT"},
			{ID: "b", Title: "x", Address: strPtr("12 Lamp Street")},
			{ID: "c", Title: "y", Description: strPtr("the street is dark")},
			{ID: "d", Title: "z"},
		}
		got := apply(engine.BuildPredicate(Criteria{Search: "Street"}), items)
		require.Len(t, got, 3)
		assert.Equal(t, "a", got[0].ID)
		assert.Equal(t, "b", got[1].ID)
		assert.Equal(t, "c", got[2].ID)
	})

	t.Run("CombinesWithAnd", func(t *testing.T) {
		items := []domain.Report{
			{ID: "a", Status: domain.ReportStatusResolved, Priority: domain.ReportPriorityHigh, Category: "roads"},
			{ID: "b", Status: domain.ReportStatusResolved, Priority: domain.ReportPriorityLow, Category: "roads"},
			{ID: "c", Status: domain.ReportStatusSubmitted, Priority: domain.ReportPriorityHigh, Category: "roads"},
		}
		got := apply(engine.BuildPredicate(Criteria{Status: "resolved", Priority: "HIGH", Category: "Roads"}), items)
		require.Len(t, got, 1)
		assert.Equal(t, "a", got[0].ID)
	})

	t.Run("DateRangeInclusive", func(t *testing.T) {
		from := reports[2].CreatedAt
		to := reports[4].CreatedAt
		got := apply(engine.BuildPredicate(Criteria{DateFrom: &from, DateTo: &to}), reports)
		require.Len(t, got, 3)
		assert.Equal(t, "r-2", got[0].ID)
		assert.Equal(t, "r-4", got[2].ID)
	})

	t.Run("DepartmentIsExact", func(t *testing.T) {
		items := []domain.Report{
			{ID: "a", Category: "Water Leakage"},
			{ID: "b", Department: strPtr("water"), Category: "general"},
		}
		got := apply(engine.BuildPredicate(Criteria{Department: "water"}), items)
		require.Len(t, got, 1)
		assert.Equal(t, "b", got[0].ID)
	})
}

func TestEngine_ApplyDepartmentFallback(t *testing.T) {
	engine := NewEngine(nil)

	t.Run("FallsBackToCategoryKeywords", func(t *testing.T) {
		reports := []domain.Report{
			{ID: "a", Category: "Water Leakage"},
			{ID: "b", Category: "Pothole", Department: strPtr("roads")},
			{ID: "c", Category: "Water Leakage"},
			{ID: "d", Category: "Streetlight"},
		}
		got := engine.Apply(reports, Criteria{Department: "water"})
		require.Len(t, got, 2)
		assert.Equal(t, "a", got[0].ID)
		assert.Equal(t, "c", got[1].ID)
	})

	t.Run("NoFallbackWhenExactMatchExists", func(t *testing.T) {
		reports := []domain.Report{
			{ID: "a", Category: "Water Leakage"},
			{ID: "b", Category: "Drainage", Department: strPtr("Water")},
		}
		got := engine.Apply(reports, Criteria{Department: "water"})
		require.Len(t, got, 1)
		assert.Equal(t, "b", got[0].ID)
	})

	t.Run("UnknownDepartmentUsesOwnName", func(t *testing.T) {
		reports := []domain.Report{
			{ID: "a", Category: "Parks maintenance"},
			{ID: "b", Category: "roads"},
		}
		got := engine.Apply(reports, Criteria{Department: "parks"})
		require.Len(t, got, 1)
		assert.Equal(t, "a", got[0].ID)
	})

	t.Run("FallbackStillAndsOtherCriteria", func(t *testing.T) {
		reports := []domain.Report{
			{ID: "a", Category: "Sewage overflow", Status: domain.ReportStatusResolved},
			{ID: "b", Category: "Plumbing", Status: domain.ReportStatusSubmitted},
		}
		got := engine.Apply(reports, Criteria{Department: "water", Status: "submitted"})
		require.Len(t, got, 1)
		assert.Equal(t, "b", got[0].ID)
	})

	t.Run("TaggedCandidatesStayExact", func(t *testing.T) {
		// The tagged report was narrowed away upstream; only the untagged one remains.
		candidates := []domain.Report{
			{ID: "untagged", Category: "Water Leakage", Status: domain.ReportStatusResolved},
		}
		c := Criteria{Department: "water", Status: "resolved"}
		assert.Empty(t, engine.ApplyTagged(candidates, c, true))

		got := engine.ApplyTagged(candidates, c, false)
		require.Len(t, got, 1)
		assert.Equal(t, "untagged", got[0].ID)
	})

	t.Run("TaggedIgnoredWithoutDepartment", func(t *testing.T) {
		candidates := []domain.Report{{ID: "a", Category: "roads"}}
		assert.Len(t, engine.ApplyTagged(candidates, Criteria{}, false), 1)
	})
}

func TestCriteria_WithSession(t *testing.T) {
	staff := &domain.Session{UserID: "s-1", Department: "roads", Role: domain.StaffRoleStaff}
	admin := &domain.Session{UserID: "a-1", Department: "roads", Role: domain.StaffRoleAdmin}

	assert.Equal(t, "roads", Criteria{}.WithSession(staff).Department)
	assert.Equal(t, "water", Criteria{Department: "water"}.WithSession(staff).Department)
	assert.Empty(t, Criteria{}.WithSession(admin).Department)
	assert.Empty(t, Criteria{}.WithSession(nil).Department)
}

func TestEngine_StoreQuery(t *testing.T) {
	engine := NewEngine(nil)
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	q := engine.StoreQuery(Criteria{Status: "In_Progress", Priority: "bogus", Category: " roads ", Search: "pipe", Department: "water", DateFrom: &from})
	assert.Equal(t, []domain.ReportStatus{domain.ReportStatusInProgress}, q.Statuses)
	assert.Empty(t, q.Priorities)
	require.NotNil(t, q.Category)
	assert.Equal(t, "roads", *q.Category)
	assert.Equal(t, &from, q.CreatedFrom)
	assert.Nil(t, q.CreatedTo)
}

func TestLoadDepartmentRules(t *testing.T) {
	t.Run("EmptyPathReturnsDefaults", func(t *testing.T) {
		rules, err := LoadDepartmentRules("")
		require.NoError(t, err)
		assert.Equal(t, []string{"road", "street", "traffic"}, rules.Keywords("Roads"))
	})

	t.Run("MergesOverDefaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "departments.yaml")
		content := "departments:\n  sanitation: [garbage, Waste, \" litter \"]\n  water: [leak]\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		rules, err := LoadDepartmentRules(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"garbage", "waste", "litter"}, rules.Keywords("sanitation"))
		assert.Equal(t, []string{"leak"}, rules.Keywords("water"))
		assert.Equal(t, []string{"electric", "power", "light"}, rules.Keywords("electricity"))
		assert.True(t, rules.MatchesCategory("sanitation", "Overflowing waste bin"))
	})

	t.Run("RejectsEmptyKeywordList", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "departments.yaml")
		require.NoError(t, os.WriteFile(path, []byte("departments:\n  parks: []\n"), 0o600))

		_, err := LoadDepartmentRules(path)
		assert.Error(t, err)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadDepartmentRules(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
