package stripe

import (
	"github.com/Dhoini/subscription-sync/pkg/logger"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// DefaultUserIDMetadataKey ключ метаданных клиента Stripe, в котором хранится ID пользователя.
const DefaultUserIDMetadataKey = "supabase_user_id"

// Client обертка над Stripe SDK: клиенты, продукты, отмена подписок.
type Client struct {
	api         *client.API
	metadataKey string
	log         *logger.Logger
}

// NewClient создает клиента Stripe с API ключом.
func NewClient(apiKey, metadataKey string, log *logger.Logger) *Client {
	return NewClientWithBackends(apiKey, nil, metadataKey, log)
}

// NewClientWithBackends позволяет подменить бэкенды SDK (например, на httptest сервер).
func NewClientWithBackends(apiKey string, backends *stripe.Backends, metadataKey string, log *logger.Logger) *Client {
	if metadataKey == "" {
		metadataKey = DefaultUserIDMetadataKey
	}
	return &Client{
		api:         client.New(apiKey, backends),
		metadataKey: metadataKey,
		log:         log,
	}
}

// MetadataKey возвращает ключ метаданных с ID пользователя.
func (c *Client) MetadataKey() string {
	return c.metadataKey
}
