package system

import (
	"context"

	"github.com/coinharbor/walletcore/internal/query"
	"github.com/coinharbor/walletcore/internal/storage"
)

// Subscribe registers (or, when the subscription already carries an id,
// updates) a push-notification subscription with the query service and
// mirrors it into local storage so it can be restored after a restart.
func (s *System) Subscribe(ctx context.Context, sub *query.Subscription) (*query.Subscription, error) {
	if s.queryc == nil {
		return nil, ErrNoQueryService
	}

	var out *query.Subscription
	var err error
	if sub.ID == "" {
		out, err = s.queryc.CreateSubscription(ctx, sub)
	} else {
		out, err = s.queryc.UpdateSubscription(ctx, sub)
	}
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if serr := s.store.SaveSubscription(subscriptionRecord(out)); serr != nil {
			s.log.Warn("subscription not persisted", "id", out.ID, "err", serr)
		}
	}
	return out, nil
}

// Unsubscribe removes a subscription from the service and from storage.
func (s *System) Unsubscribe(ctx context.Context, id string) error {
	if s.queryc == nil {
		return ErrNoQueryService
	}
	if err := s.queryc.DeleteSubscription(ctx, id); err != nil {
		return err
	}
	if s.store != nil {
		if serr := s.store.DeleteSubscription(id); serr != nil {
			s.log.Warn("subscription not removed from storage", "id", id, "err", serr)
		}
	}
	return nil
}

// StoredSubscriptions returns the subscriptions mirrored in local storage.
func (s *System) StoredSubscriptions() ([]*storage.SubscriptionRecord, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListSubscriptions()
}

func subscriptionRecord(sub *query.Subscription) *storage.SubscriptionRecord {
	currencies := make([]string, 0, len(sub.Currencies))
	for _, c := range sub.Currencies {
		currencies = append(currencies, c.CurrencyID)
	}
	return &storage.SubscriptionRecord{
		ID:            sub.ID,
		DeviceID:      sub.DeviceID,
		EndpointKind:  sub.Endpoint.Kind,
		EndpointValue: sub.Endpoint.Value,
		Currencies:    currencies,
	}
}
