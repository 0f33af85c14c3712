package consumer

import "context"

// Consumer runs until ctx is done.
type Consumer interface {
	Start(ctx context.Context) error
}
