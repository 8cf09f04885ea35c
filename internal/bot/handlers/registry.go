package handlers

import (
	tgbot "github.com/go-telegram/bot"
)

// RegisteredHandler represents a command handler with its description and middleware.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
	// Description is published in the command menu; empty keeps it hidden.
	Description string
}

// RegisterAllCommands returns every handler keyed by a unique name. Commands
// and button presses all end up in the conversation; plain messages reach it
// through the default handler.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)
	conversation := NewConversationHandler(deps)

	command := func(name, description string, mw ...tgbot.Middleware) {
		handlers["/"+name] = RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     name,
			Handler:     conversation,
			MatchType:   tgbot.MatchTypeCommandStartOnly,
			Middleware:  mw,
			Description: description,
		}
	}

	command("start", "Create your profile or open the menu")
	command("myprofile", "Show and edit your profile")
	command("language", "Change the interface language")
	command("cancel", "Cancel the current step")
	command("help", "Contact support")
	command("whoami", "Show your Telegram ID")
	command("stats", "", AdminOnly(deps))

	handlers["callback"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeCallbackQueryData,
		Pattern:     "",
		Handler:     conversation,
		MatchType:   tgbot.MatchTypePrefix,
	}

	return handlers
}
