package services

import (
	"sync"

	"github.com/hashirwa/oracle-backend/models"
	"github.com/sirupsen/logrus"
)

// NotificationDispatcher translates coordinator and vault events into
// Notification records and fans them out to subscribers. The record is
// appended to the store's log synchronously (that log is the durable
// read path); broadcast to subscribers is best-effort over buffered
// channels, so a slow or absent consumer never blocks the write.
type NotificationDispatcher struct {
	store       *MarketplaceStore
	subscribers map[int64]chan models.Notification
	nextSubID   int64
	mutex       sync.Mutex
	logger      *logrus.Entry
}

// NewNotificationDispatcher creates a dispatcher over the shared store and
// installs itself as the store's notify hook, so every append (coordinator
// events and vault events alike) is broadcast to subscribers.
func NewNotificationDispatcher(store *MarketplaceStore) *NotificationDispatcher {
	d := &NotificationDispatcher{
		store:       store,
		subscribers: make(map[int64]chan models.Notification),
		logger:      logrus.WithField("component", "NotificationDispatcher"),
	}
	store.SetNotifyHook(d.Broadcast)
	return d
}

// Publish appends a notification to the shared log. The store's notify
// hook broadcasts it to subscribers.
func (d *NotificationDispatcher) Publish(listingID int, kind models.NotificationKind, payload string) models.Notification {
	return d.store.AppendNotification(listingID, kind, payload)
}

// Broadcast fans an already-logged notification out to subscribers,
// dropping it for any subscriber whose buffer is full.
func (d *NotificationDispatcher) Broadcast(notification models.Notification) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for id, ch := range d.subscribers {
		select {
		case ch <- notification:
		default:
			d.logger.WithFields(logrus.Fields{
				"subscriber_id":     id,
				"notification_kind": notification.Kind,
			}).Warn("Subscriber buffer full, dropping notification broadcast")
		}
	}
}

// Subscribe registers a consumer. The returned channel receives broadcasts
// until Unsubscribe; the id identifies the subscription.
func (d *NotificationDispatcher) Subscribe(buffer int) (int64, <-chan models.Notification) {
	if buffer <= 0 {
		buffer = 16
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.nextSubID++
	ch := make(chan models.Notification, buffer)
	d.subscribers[d.nextSubID] = ch
	return d.nextSubID, ch
}

// Unsubscribe removes a consumer and closes its channel.
func (d *NotificationDispatcher) Unsubscribe(id int64) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if ch, exists := d.subscribers[id]; exists {
		delete(d.subscribers, id)
		close(ch)
	}
}

// Close drops every subscriber.
func (d *NotificationDispatcher) Close() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for id, ch := range d.subscribers {
		delete(d.subscribers, id)
		close(ch)
	}
}
