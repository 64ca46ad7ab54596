// Package notify implements providers.NotificationChannel over
// containrrr/shoutrrr, one channel per configured destination URL. No
// example repo in this pack sends outbound notifications, so this follows
// shoutrrr's own idiomatic single-call send rather than any teacher file.
package notify

import (
	"context"
	"fmt"

	"github.com/containrrr/shoutrrr"
	"github.com/containrrr/shoutrrr/pkg/router"
	"github.com/containrrr/shoutrrr/pkg/types"

	"github.com/filmvault/curator/internal/errs"
	"github.com/filmvault/curator/internal/providers"
)

// Channel sends notifications to one shoutrrr destination URL.
type Channel struct {
	name   string
	sender *router.ServiceRouter
}

// New builds a Channel for name, parsing url with shoutrrr's own
// scheme-based service resolution (discord://, slack://, generic
// webhook://, ...).
func New(name, url string) (*Channel, error) {
	sender, err := shoutrrr.CreateSender(url)
	if err != nil {
		return nil, errs.Wrap(errs.KindInputInvalid, err, "parse notification channel url").WithContext("channel", name)
	}
	return &Channel{name: name, sender: sender}, nil
}

func (c *Channel) Name() string { return c.name }

func (c *Channel) Send(ctx context.Context, payload providers.NotificationPayload) error {
	message := payload.Message
	if payload.Title != "" {
		message = fmt.Sprintf("%s: %s", payload.Title, payload.Message)
	}

	params := types.Params{"title": payload.Title}
	errsList := c.sender.Send(message, &params)
	for _, sendErr := range errsList {
		if sendErr != nil {
			return errs.Wrap(errs.KindProviderUnavailable, sendErr, "send notification").
				WithContext("channel", c.name).
				ForceRetryable(true)
		}
	}
	return nil
}

var _ providers.NotificationChannel = (*Channel)(nil)

// Registry resolves a channel by name, the seam the notify-<channel>
// handlers registered in cmd/server/main.go use to dispatch a payload to
// the right destination.
type Registry struct {
	channels map[string]*Channel
}

func NewRegistry(channels []*Channel) *Registry {
	byName := make(map[string]*Channel, len(channels))
	for _, c := range channels {
		byName[c.Name()] = c
	}
	return &Registry{channels: byName}
}

func (r *Registry) Get(name string) (providers.NotificationChannel, bool) {
	c, ok := r.channels[name]
	return c, ok
}
