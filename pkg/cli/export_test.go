package cli

import (
	"context"
	"io"

	"github.com/secmon-lab/wishwell/pkg/usecase"
)

var (
	PrintStatus    = printStatus
	GetIndexConfig = getIndexConfig
	StopTraining   = stopTraining
)

// SeedWishes returns created, rejected and invalid counts
func SeedWishes(ctx context.Context, wishes *usecase.WishUseCase, src io.Reader) (int, int, int, error) {
	r, err := seedWishes(ctx, wishes, src)
	if r == nil {
		return 0, 0, 0, err
	}
	return r.created, r.rejected, r.invalid, err
}
