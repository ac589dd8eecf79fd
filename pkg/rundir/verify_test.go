package rundir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beam-cloud/runwatch/pkg/types"
)

const fixtures = "../runstate/test_data"

func TestVerifyCompletedFixtures(t *testing.T) {
	assert.NoError(t, VerifyCompleted(NewProbe(filepath.Join(fixtures, "seq_complete"), DefaultLayout())))

	err := VerifyCompleted(NewProbe(filepath.Join(fixtures, "seq_failed"), DefaultLayout()))
	require.Error(t, err)
	var unsuccessful *types.ErrRunUnsuccessful
	require.ErrorAs(t, err, &unsuccessful)
	assert.Equal(t, types.CompletionExceptionEndedEarly, unsuccessful.Status.Status)
	assert.Equal(t, "20231231_bar_ABCXYZ", unsuccessful.Status.RunID)

	err = VerifyCompleted(NewProbe(filepath.Join(fixtures, "seq_sequencing"), DefaultLayout()))
	var incomplete *types.ErrRunIncomplete
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, DefaultCopyComplete, incomplete.Missing)
}

func TestVerifyCompletedWithoutStatusFile(t *testing.T) {
	root, p := newRun(t)
	touch(t, filepath.Join(root, DefaultRunInfo))
	assert.True(t, (&types.ErrRunIncomplete{}).From(VerifyCompleted(p)))

	touch(t, filepath.Join(root, DefaultCopyComplete))
	assert.NoError(t, VerifyCompleted(p), "the completion status file is optional")
}

func TestVerifyCompletedUnreadableStatus(t *testing.T) {
	root, p := newRun(t)
	touch(t, filepath.Join(root, DefaultCopyComplete))
	require.NoError(t, os.WriteFile(filepath.Join(root, DefaultCompletionFile), []byte("<RunCompletionStatus>"), 0o644))

	err := VerifyCompleted(p)
	require.Error(t, err)
	assert.True(t, (&types.ErrCompletionMalformed{}).From(err))
	assert.False(t, (&types.ErrRunUnsuccessful{}).From(err))
}

func TestVerifyCompletedUnavailableRoot(t *testing.T) {
	root, _ := newRun(t)
	err := VerifyCompleted(NewProbe(filepath.Join(root, "gone"), DefaultLayout()))
	assert.True(t, (&types.ErrRunIncomplete{}).From(err))
}
