package analyze

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/mod/semver"

	"github.com/abhisek/predtext/internal/event"
	"github.com/abhisek/predtext/internal/master"
	"github.com/abhisek/predtext/internal/trial"
)

// ErrClientTooOld is returned for logs written by a client older than the
// configured minimum.
var ErrClientTooOld = errors.New("client version below minimum")

// DivergenceError reports that replay produced a different result than the
// client recorded. It means the reducers are not deterministic.
type DivergenceError struct {
	Index int
	Trial string
	Diff  string
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("replay diverged at event %d in trial %q (-logged +replayed):\n%s", e.Index, e.Trial, e.Diff)
}

// CheckClientVersion compares a login's clientVersion against min. Both
// accept an optional leading "v". An empty min accepts everything.
func CheckClientVersion(version, min string) error {
	if min == "" {
		return nil
	}
	m := canonical(min)
	if !semver.IsValid(m) {
		return fmt.Errorf("invalid minimum client version %q", min)
	}
	v := canonical(version)
	if !semver.IsValid(v) {
		return fmt.Errorf("%w: unparseable client version %q", ErrClientTooOld, version)
	}
	if semver.Compare(v, m) < 0 {
		return fmt.Errorf("%w: %s < %s", ErrClientTooOld, v, m)
	}
	return nil
}

func canonical(v string) string {
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

func finalDataTrial(ev event.Event) string {
	var fd trial.FinalData
	if err := json.Unmarshal(ev.FinalData, &fd); err != nil {
		return ""
	}
	return fd.Name
}

// checkFinalData compares a logged client summary with the trial as
// replayed so far. The summary describes the trial before this event.
func checkFinalData(st *master.State, index int, ev event.Event) error {
	var logged trial.FinalData
	if err := json.Unmarshal(ev.FinalData, &logged); err != nil {
		return &event.ShapeError{Raw: ev.FinalData, Err: fmt.Errorf("finalData payload: %w", err)}
	}
	name := logged.Name
	if name == "" {
		name = st.Trials.Current
	}
	t, ok := st.Trial(name)
	if !ok {
		return fmt.Errorf("finalData at event %d: %w: %q", index, master.ErrUnknownTrial, name)
	}
	logged.Name = name
	replayed := t.FinalData()
	if diff := cmp.Diff(logged, replayed, cmpopts.EquateEmpty()); diff != "" {
		return &DivergenceError{Index: index, Trial: name, Diff: diff}
	}
	return nil
}
