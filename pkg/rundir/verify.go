package rundir

import (
	"github.com/beam-cloud/runwatch/pkg/completion"
	"github.com/beam-cloud/runwatch/pkg/types"
)

// VerifyCompleted checks that a run is finished and fully copied. The copy
// marker must exist and, when the instrument wrote a completion status file,
// it must say CompletedAsPlanned. Some instruments never write that file.
func VerifyCompleted(p Probe) error {
	if !p.IsAvailable() {
		return &types.ErrRunIncomplete{Root: p.root, Missing: p.root}
	}
	if !p.HasMarker(types.MarkerCopyComplete) {
		return &types.ErrRunIncomplete{Root: p.root, Missing: p.layout.CopyCompleteMarker}
	}

	path, ok := p.CompletionFilePath()
	if !ok {
		return nil
	}
	status, err := completion.ParseFile(path)
	if err != nil {
		return err
	}
	if !status.IsSuccess() {
		return &types.ErrRunUnsuccessful{Root: p.root, Status: status}
	}
	return nil
}
