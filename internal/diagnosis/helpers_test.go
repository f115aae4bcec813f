package diagnosis

import (
	"context"

	"braingemma/internal/logging"
)

func contextWithRequestID(id string) context.Context {
	return logging.ContextWithRequestID(context.Background(), id)
}
