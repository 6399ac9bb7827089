package installer

import (
	"context"

	"github.com/pkg/errors"
)

// Resolution says what to do with a file that already exists on disk.
type Resolution string

const (
	ResolutionOverwrite Resolution = "overwrite"
	ResolutionSkip      Resolution = "skip"
	ResolutionCancel    Resolution = "cancel"
)

var conflictOptions = []Option{
	{Label: "Overwrite", Hint: "replace the existing file", Value: string(ResolutionOverwrite)},
	{Label: "Skip", Hint: "keep the existing file", Value: string(ResolutionSkip)},
	{Label: "Cancel installation", Hint: "abort the entire install", Value: string(ResolutionCancel)},
}

// ResolveConflicts decides, for every target path, whether it is written.
// Paths that do not exist are overwritten without asking. Once the user
// cancels, every undecided path is marked cancelled and no further
// questions are asked.
func (i *Installer) ResolveConflicts(ctx context.Context, targets []string) (map[string]Resolution, error) {
	resolutions := make(map[string]Resolution, len(targets))

	for idx, target := range targets {
		if !exists(target) {
			resolutions[target] = ResolutionOverwrite
			continue
		}

		i.presenter.Warning("Conflict detected: " + target)
		answer, err := i.prompter.Select(ctx, "File already exists: "+target, conflictOptions)
		resolution := Resolution(answer)
		if errors.Is(err, ErrCancelled) {
			resolution = ResolutionCancel
		} else if err != nil {
			return nil, err
		}
		resolutions[target] = resolution

		if resolution == ResolutionCancel {
			for _, rest := range targets[idx+1:] {
				if _, ok := resolutions[rest]; !ok {
					resolutions[rest] = ResolutionCancel
				}
			}
			break
		}
	}
	return resolutions, nil
}
