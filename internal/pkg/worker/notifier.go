package worker

import (
	"context"
	"fmt"
	"time"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/meetscribe/internal/pkg/messages"
	"github.com/airenas/meetscribe/internal/pkg/persistence"
	"github.com/airenas/meetscribe/internal/pkg/status"
)

// Notifier publishes recording status changes and e-mail requests
type Notifier struct {
	sender MsgSender
	now    func() time.Time
}

// NewNotifier creates notifier
func NewNotifier(sender MsgSender) (*Notifier, error) {
	if sender == nil {
		return nil, fmt.Errorf("no msg sender")
	}
	return &Notifier{sender: sender, now: time.Now}, nil
}

// Notify sends a status change msg. Start and final statuses also go to the inform queue
func (n *Notifier) Notify(ctx context.Context, rec *persistence.Recording) error {
	if rec == nil {
		return fmt.Errorf("no recording")
	}
	if err := n.sender.SendMessage(ctx, messages.NewRecordingMessage(rec.ID, rec.Status), messages.StatusChange); err != nil {
		return fmt.Errorf("can't send status change: %w", err)
	}
	it := informType(rec.Status)
	if it == "" || !rec.Email.Valid || rec.Email.String == "" {
		return nil
	}
	goapp.Log.Debug().Str("ID", rec.ID).Str("type", it).Msg("inform")
	err := n.sender.SendMessage(ctx, &amessages.InformMessage{QueueMessage: amessages.QueueMessage{ID: rec.ID},
		Type: it, At: n.now()}, messages.Inform)
	if err != nil {
		return fmt.Errorf("can't send inform msg: %w", err)
	}
	return nil
}

func informType(st string) string {
	switch status.From(st) {
	case status.Processing:
		return amessages.InformTypeStarted
	case status.Completed:
		return amessages.InformTypeFinished
	case status.Failed:
		return amessages.InformTypeFailed
	}
	return ""
}
