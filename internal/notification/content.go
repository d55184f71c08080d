package notification

import "laundry-reservation-backend/internal/model"

// Message is the user-visible content of a push notification.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Content returns the notification text for kind. The switch covers every
// model.IntentKind; ok is false only for values outside the enum.
func Content(kind model.IntentKind) (msg Message, ok bool) {
	switch kind {
	case model.KindReminder5Min:
		return Message{
			Title: "⏳ 5 minutes restantes",
			Body:  "Votre créneau sur la machine se termine dans 5 minutes.",
		}, true
	case model.KindReminder2Min:
		return Message{
			Title: "⚠️ 2 minutes restantes",
			Body:  "Votre créneau sur la machine se termine dans 2 minutes.",
		}, true
	case model.KindEnd:
		return Message{
			Title: "⏱️ Temps écoulé",
			Body:  "Votre créneau est terminé. Merci de libérer la machine.",
		}, true
	case model.KindAggressive:
		return Message{
			Title: "⚠️ Libération imminente",
			Body:  "La machine sera libérée automatiquement dans 30 secondes.",
		}, true
	case model.KindAutoRelease:
		return Message{
			Title: "✅ Machine libérée",
			Body:  "La machine est maintenant disponible.",
		}, true
	}
	return Message{}, false
}
