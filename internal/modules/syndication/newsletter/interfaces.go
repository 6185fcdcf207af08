package newsletter

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/mx-space/mdx-core/internal/models"
	"github.com/mx-space/mdx-core/internal/pkg/mail"
)

type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

type Recipients interface {
	Active(ctx context.Context) ([]models.SubscriberModel, error)
}
