package handlers

import (
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/relations"
	"github.com/vidtube/backend/internal/response"
)

// SubscriptionHandler toggles and lists channel subscriptions.
type SubscriptionHandler struct {
	Relations     RelationToggler
	Subscriptions SubscriptionStore
}

type subscriptionView struct {
	ID         string    `json:"_id"`
	Subscriber string    `json:"subscriber"`
	Channel    any       `json:"channel"`
	CreatedAt  time.Time `json:"createdAt"`
}

var subscriptionMessages = toggleMessages{
	invalid:  "Invalid channel ID",
	notFound: "Channel not found",
	self:     "You cannot subscribe to your own channel",
}

// Toggle handles POST /api/v1/subscriptions/c/sub/{channelId}.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) error {
	viewer, err := currentUser(r)
	if err != nil {
		return err
	}
	result, err := toggleRelation(r.Context(), h.Relations, viewer.ID, relations.KindChannel, r.PathValue("channelId"), subscriptionMessages)
	if err != nil {
		return err
	}
	if !result.Active {
		response.Success(r.Context(), w, http.StatusOK, nil, result.Message)
		return nil
	}

	view := subscriptionView{
		ID:         result.Record.ID,
		Subscriber: result.Record.Actor,
		Channel:    result.Snapshot,
		CreatedAt:  result.Record.CreatedAt,
	}
	response.Success(r.Context(), w, http.StatusOK, view, result.Message)
	return nil
}

// SubscribedChannels handles GET /api/v1/subscriptions/u/{subscriberId}.
func (h SubscriptionHandler) SubscribedChannels(w http.ResponseWriter, r *http.Request) error {
	if _, err := currentUser(r); err != nil {
		return err
	}
	id := r.PathValue("subscriberId")
	if err := requireID(id, "Invalid subscriber ID"); err != nil {
		return err
	}
	channels, err := h.Subscriptions.SubscribedChannels(r.Context(), id)
	if err != nil {
		return err
	}
	response.Success(r.Context(), w, http.StatusOK, channels, "Subscribed channels fetched successfully")
	return nil
}

// Subscribers handles GET /api/v1/subscriptions/c/{channelId}.
func (h SubscriptionHandler) Subscribers(w http.ResponseWriter, r *http.Request) error {
	if _, err := currentUser(r); err != nil {
		return err
	}
	id := r.PathValue("channelId")
	if err := requireID(id, "Invalid channel ID"); err != nil {
		return err
	}
	subscribers, err := h.Subscriptions.Subscribers(r.Context(), id)
	if err != nil {
		return err
	}
	response.Success(r.Context(), w, http.StatusOK, subscribers, "Subscribers fetched successfully")
	return nil
}
