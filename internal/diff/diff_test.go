package diff

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indexwatch/internal/models"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestCompareIdenticalSnapshots(t *testing.T) {
	snap := Snapshot{
		"t1": {FoundExposed: true, HTTPStatus: intPtr(200), FinalURL: strPtr("https://a.example")},
		"t2": {IsPDF: true},
		"t3": {ErrorMessage: strPtr("Request timeout")},
	}
	assert.Empty(t, Compare(snap, snap))
	assert.Empty(t, Compare(Snapshot{}, Snapshot{}))
}

func TestCompareExposureFlip(t *testing.T) {
	baseline := Snapshot{"t1": {FoundExposed: false, IsPDF: false}}
	current := Snapshot{"t1": {FoundExposed: true, IsPDF: false}}

	got := Compare(baseline, current)
	assert.Equal(t, []TargetDiff{{
		TargetID: "t1",
		Diffs:    []FieldDiff{{Field: FieldExposure, OldValue: false, NewValue: true}},
	}}, got)
}

func TestComparePresence(t *testing.T) {
	got := Compare(Snapshot{"gone": {}}, Snapshot{"new": {FoundExposed: true}})
	require.Len(t, got, 2)
	assert.Equal(t, TargetDiff{
		TargetID: "gone",
		Diffs:    []FieldDiff{{Field: FieldPresence, OldValue: "exists", NewValue: "missing"}},
	}, got[0])
	assert.Equal(t, TargetDiff{
		TargetID: "new",
		Diffs:    []FieldDiff{{Field: FieldPresence, OldValue: "missing", NewValue: "exists"}},
	}, got[1])
}

func TestCompareNullStatusDiffersFromZero(t *testing.T) {
	got := Compare(Snapshot{"t1": {HTTPStatus: nil}}, Snapshot{"t1": {HTTPStatus: intPtr(0)}})
	require.Len(t, got, 1)
	assert.Equal(t, []FieldDiff{{Field: FieldHTTPStatus, OldValue: nil, NewValue: 0}}, got[0].Diffs)

	assert.Empty(t, Compare(Snapshot{"t1": {HTTPStatus: intPtr(404)}}, Snapshot{"t1": {HTTPStatus: intPtr(404)}}))
}

func TestCompareErrorMessage(t *testing.T) {
	t.Run("new error is reported", func(t *testing.T) {
		got := Compare(Snapshot{"t1": {}}, Snapshot{"t1": {ErrorMessage: strPtr("dial tcp: refused")}})
		require.Len(t, got, 1)
		assert.Equal(t, []FieldDiff{{Field: FieldErrorMessage, OldValue: nil, NewValue: "dial tcp: refused"}}, got[0].Diffs)
	})
	t.Run("cleared or persisting error is not", func(t *testing.T) {
		assert.Empty(t, Compare(Snapshot{"t1": {ErrorMessage: strPtr("x")}}, Snapshot{"t1": {}}))
		assert.Empty(t, Compare(Snapshot{"t1": {ErrorMessage: strPtr("x")}}, Snapshot{"t1": {ErrorMessage: strPtr("y")}}))
	})
}

func TestCompareFieldOrder(t *testing.T) {
	got := Compare(
		Snapshot{"t1": {FoundExposed: true, HTTPStatus: intPtr(200), FinalURL: strPtr("https://a")}},
		Snapshot{"t1": {IsPDF: true, HTTPStatus: intPtr(301), FinalURL: strPtr("https://b"), ErrorMessage: strPtr("boom")}},
	)
	require.Len(t, got, 1)
	var fields []Field
	for _, d := range got[0].Diffs {
		fields = append(fields, d.Field)
	}
	assert.Equal(t, []Field{FieldExposure, FieldPDFExposure, FieldHTTPStatus, FieldFinalURL, FieldErrorMessage}, fields)
}

func TestGroundTruthIgnoresTransportFields(t *testing.T) {
	targets := []models.Target{
		{ID: "t1", AnswerSearchExposed: models.Yes},
		{ID: "t2", AnswerSearchExposed: models.Unknown, AnswerPDFExposed: true},
	}
	gt := GroundTruth(targets)
	assert.Equal(t, Entry{FoundExposed: true, AnswerOnly: true}, gt["t1"])
	assert.Equal(t, Entry{IsPDF: true, AnswerOnly: true}, gt["t2"])

	current := Snapshot{
		"t1": {FoundExposed: true, HTTPStatus: intPtr(200), FinalURL: strPtr("https://a")},
		"t2": {IsPDF: true, HTTPStatus: intPtr(200)},
	}
	assert.Empty(t, AgainstGroundTruth(gt, current))
}

func TestChronologicalFirstRunMatchesGroundTruth(t *testing.T) {
	gt := GroundTruth([]models.Target{{ID: "t1", AnswerSearchExposed: models.Yes}})
	runs := []Dated{{Date: "2024-05-01", Snapshot: Snapshot{"t1": {FoundExposed: true}}}}

	byDate := Chronological(runs, gt)
	assert.NotContains(t, byDate, "2024-05-01")
	assert.Empty(t, byDate)
}

func TestChronologicalUsesPredecessor(t *testing.T) {
	gt := GroundTruth([]models.Target{{ID: "t1", AnswerSearchExposed: models.Yes}})
	runs := []Dated{
		{Date: "2024-05-02", Snapshot: Snapshot{"t1": {FoundExposed: false}}},
		{Date: "2024-05-01", Snapshot: Snapshot{"t1": {FoundExposed: true}}},
	}

	byDate := Chronological(runs, gt)
	require.Contains(t, byDate, "2024-05-02")
	assert.Equal(t, []TargetDiff{{
		TargetID: "t1",
		Diffs:    []FieldDiff{{Field: FieldExposure, OldValue: true, NewValue: false}},
	}}, byDate["2024-05-02"])
	assert.Len(t, byDate, 1)
}

func TestChronologicalGolden(t *testing.T) {
	gt := GroundTruth([]models.Target{
		{ID: "t1", AnswerSearchExposed: models.Yes},
		{ID: "t2", AnswerSearchExposed: models.No, AnswerPDFExposed: true},
	})
	runs := []Dated{
		{Date: "2024-01-01", Snapshot: Snapshot{
			"t1": {FoundExposed: true, HTTPStatus: intPtr(200), FinalURL: strPtr("https://a.example/1")},
			"t2": {IsPDF: true, HTTPStatus: intPtr(200), FinalURL: strPtr("https://b.example/2.pdf")},
		}},
		{Date: "2024-01-02", Snapshot: Snapshot{
			"t1": {HTTPStatus: intPtr(200), FinalURL: strPtr("https://a.example/1")},
			"t2": {ErrorMessage: strPtr("Request timeout")},
		}},
		{Date: "2024-01-03", Snapshot: Snapshot{
			"t1": {HTTPStatus: intPtr(200), FinalURL: strPtr("https://a.example/1")},
			"t3": {FoundExposed: true, HTTPStatus: intPtr(200), FinalURL: strPtr("https://c.example/3")},
		}},
	}

	out, err := json.MarshalIndent(Chronological(runs, gt), "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "chronological", out)
}

func TestFromResults(t *testing.T) {
	snap := FromResults([]models.RunResult{
		{TargetID: "t1", Outcome: models.Outcome{FoundExposed: true, HTTPStatus: intPtr(200)}},
		{TargetID: "t2", Outcome: models.Outcome{IsPDF: true}},
	})
	require.Len(t, snap, 2)
	assert.True(t, snap["t1"].FoundExposed)
	assert.Equal(t, 200, *snap["t1"].HTTPStatus)
	assert.True(t, snap["t2"].IsPDF)
	assert.False(t, snap["t2"].AnswerOnly)
}
