package stage_test

import (
	"errors"
	"testing"

	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
	"github.com/humanconnectome/hcp-pipelines/pkg/stage"
)

func TestParse(t *testing.T) {
	type then struct {
		stage stage.Stage
		err   error
	}

	theory := func(in string, then then) func(*testing.T) {
		return func(t *testing.T) {
			actual, err := stage.Parse(in)
			if !errors.Is(err, then.err) {
				t.Fatalf("error: (actual, expected) = (%v, %v)", err, then.err)
			}
			if then.err == nil && actual != then.stage {
				t.Errorf("(actual, expected) = (%s, %s)", actual, then.stage)
			}
		}
	}

	t.Run("when a stage name is given, it should be parsed", theory("PROCESS_DATA", then{stage: stage.ProcessData}))
	t.Run("when a lowercase stage name is given, it should be parsed", theory("clean_data", then{stage: stage.CleanData}))
	t.Run("when a step name is given, it should be parsed", theory("put", then{stage: stage.PutData}))
	t.Run("when prepare is given, it should be PREPARE_SCRIPTS", theory("prepare", then{stage: stage.PrepareScripts}))
	t.Run("when an unknown name is given, it should be a configuration error", theory("TRANSMOGRIFY", then{err: xe.ErrConfiguration}))
}

func TestOrder(t *testing.T) {
	all := stage.All()
	for i := 1; i < len(all); i++ {
		if !(all[i-1] < all[i]) {
			t.Errorf("%s should be before %s", all[i-1], all[i])
		}
	}
	if !stage.ProcessData.Includes(stage.GetData) {
		t.Error("PROCESS_DATA should include GET_DATA")
	}
	if stage.ProcessData.Includes(stage.CleanData) {
		t.Error("PROCESS_DATA should not include CLEAN_DATA")
	}
	if jobs := stage.Jobs(); jobs[0] != stage.GetData || jobs[len(jobs)-1] != stage.CheckData {
		t.Errorf("unexpected job stages: %v", jobs)
	}
}
