package pagination

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestAggregate_OrdersByPageIndex(t *testing.T) {
	// Completion order: 3, 1, 2.
	outcomes := []Outcome[int]{
		Success(Page[int]{Index: 3, Items: []int{30, 31}}),
		Success(Page[int]{Index: 1, Items: []int{10}, TotalPages: 3}),
		Success(Page[int]{Index: 2, Items: []int{20, 21, 22}}),
	}

	result := Aggregate(zerolog.Nop(), outcomes)

	want := []int{10, 20, 21, 22, 30, 31}
	if !reflect.DeepEqual(result.Records, want) {
		t.Errorf("Records = %v, want %v", result.Records, want)
	}
	if len(result.FailedPages) != 0 {
		t.Errorf("FailedPages = %v, want none", result.FailedPages)
	}

	// Input must not be reordered in place.
	if outcomes[0].Index != 3 {
		t.Error("Aggregate mutated its input")
	}
}

func TestAggregate_FailuresReportedAndLogged(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := zerolog.New(buf)

	errBad := errors.New("status 404")
	outcomes := []Outcome[string]{
		Success(Page[string]{Index: 1, Items: []string{"a"}}),
		Failure[string](4, errors.New("status 500")),
		Failure[string](2, errBad),
		Success(Page[string]{Index: 3, Items: []string{"c"}}),
	}

	result := Aggregate(logger, outcomes)

	if !reflect.DeepEqual(result.Records, []string{"a", "c"}) {
		t.Errorf("Records = %v, want [a c]", result.Records)
	}
	if got := result.FailedIndices(); !reflect.DeepEqual(got, []int{2, 4}) {
		t.Errorf("FailedIndices() = %v, want [2 4]", got)
	}
	if !errors.Is(result.FailedPages[0].Err, errBad) {
		t.Errorf("FailedPages[0].Err = %v, want %v", result.FailedPages[0].Err, errBad)
	}

	output := buf.String()
	if strings.Count(output, `"level":"error"`) != 2 {
		t.Errorf("expected two error log lines, got %q", output)
	}
	if !strings.Contains(output, `"page":2`) || !strings.Contains(output, "status 404") {
		t.Errorf("error log should identify page and cause, got %q", output)
	}
}

func TestAggregate_Empty(t *testing.T) {
	result := Aggregate[string](zerolog.Nop(), nil)

	if result.Records != nil || result.FailedPages != nil {
		t.Errorf("expected empty result, got %+v", result)
	}
	if !result.Complete() {
		t.Error("empty result should be complete")
	}
}

func TestOutcome_Constructors(t *testing.T) {
	ok := Success(Page[int]{Index: 7, Items: []int{1}})
	if !ok.OK() || ok.Index != 7 {
		t.Errorf("Success() = %+v", ok)
	}

	failed := Failure[int](9, errors.New("x"))
	if failed.OK() || failed.Index != 9 || failed.Page.Items != nil {
		t.Errorf("Failure() = %+v", failed)
	}
}

func TestBootstrapError(t *testing.T) {
	cause := errors.New("connection reset")
	err := &BootstrapError{Err: cause}

	if !errors.Is(err, cause) {
		t.Error("BootstrapError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "page 1") || !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("Error() = %q", err.Error())
	}
}
