package usecases

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/ports"
	"github.com/samirrijal/tripplanner/internal/pkg/metrics"
)

// RefusalReply is returned for messages that are not about travel.
const RefusalReply = "I'm a travel assistant and can only answer questions related to travel, trips, destinations, accommodations, flights, or other travel-related topics. How can I help with your travel plans?"

var travelKeywords = []string{
	"travel", "trip", "vacation", "holiday", "tour", "flight", "hotel",
	"destination", "accommodation", "tourism", "tourist", "beach", "resort",
	"booking", "itinerary", "sightseeing", "adventure", "backpacking",
	"cruise", "passport", "visa", "airport", "luggage", "excursion",
	"guide", "city", "country", "landmark", "attraction", "transportation",
	"train", "bus", "taxi", "car rental", "camping", "hiking", "road trip",
	"airline", "lounge", "checkin", "checkout", "reservation", "places to visit",
	"where to go", "when to visit", "how to get", "best time", "budget",
	"goa", "delhi", "mumbai", "bangkok", "paris", "london", "new york", "tokyo",
	"bali", "phuket", "singapore", "dubai", "hong kong", "rome", "venice",
	"barcelona", "madrid", "amsterdam", "berlin", "vienna", "prague",
	"hostel", "airbnb", "motel", "homestay",
}

// FallbackReplies are served when the model cannot answer.
var FallbackReplies = []string{
	"I'm having trouble accessing my travel database at the moment. Could you try asking about your trip again in a different way?",
	"Looks like our travel server is experiencing some delays. How else can I help with your travel plans today?",
	"I'm sorry, I couldn't process your travel question right now. Feel free to ask about another destination or travel topic.",
	"My travel information system is temporarily unavailable. While we wait, could you tell me more about what type of trip you're planning?",
	"There seems to be a connection issue with our travel database. In the meantime, I'd be happy to discuss general travel tips if you're interested.",
}

const travelPrompt = "You are a travel assistant that only provides information about travel, destinations, accommodations, flights, itineraries, and other travel-related topics. The user query is: "

// IsTravelRelated reports whether text mentions any travel keyword.
func IsTravelRelated(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range travelKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ChatService answers travel questions through a language model, gated by
// a local keyword allow-list.
type ChatService struct {
	model  ports.ChatModel
	logger *slog.Logger
	pick   func(n int) int
}

// NewChatService creates a ChatService. model may be nil, in which case
// every allowed question gets a fallback reply.
func NewChatService(model ports.ChatModel, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{model: model, logger: logger, pick: rand.IntN}
}

// WithPicker replaces the random fallback picker.
func (s *ChatService) WithPicker(pick func(n int) int) *ChatService {
	s.pick = pick
	return s
}

// Ask answers text. Off-topic questions never reach the model.
func (s *ChatService) Ask(ctx context.Context, text string) (domain.ChatReply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ChatReply{}, domain.ErrEmptyMessage
	}

	if !IsTravelRelated(text) {
		metrics.ChatMessages.WithLabelValues("refused").Inc()
		return domain.ChatReply{Text: RefusalReply}, nil
	}

	if s.model != nil {
		answer, err := s.model.Generate(ctx, travelPrompt+text)
		if err == nil && strings.TrimSpace(answer) != "" {
			metrics.ChatMessages.WithLabelValues("answered").Inc()
			return domain.ChatReply{Text: strings.TrimSpace(answer), Allowed: true}, nil
		}
		s.logger.Warn("chat model failed", "error", err)
	}

	metrics.ChatMessages.WithLabelValues("fallback").Inc()
	return domain.ChatReply{
		Text:     FallbackReplies[s.pick(len(FallbackReplies))],
		Allowed:  true,
		Fallback: true,
	}, nil
}
