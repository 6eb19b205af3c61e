package action

import (
	"strings"
	"time"
)

const maxChatLen = 500

type ChatResult struct {
	Status string `json:"status"`
	Tick   int64  `json:"tick"`
}

// Chat appends a chat entry and broadcasts it to all subscribers. Messages
// are trimmed and capped at maxChatLen; longer messages are chunked
// client-side, but the server itself just truncates rather than rejecting,
// matching §4.4's "accepts any size up to an implementation cap".
func (p *Pipeline) Chat(agentID, message string) (ChatResult, *Error) {
	agent, ok := p.Store.GetAgent(agentID)
	if !ok {
		return ChatResult{}, newErr(KindAuthUnauthorized, "unknown agent")
	}

	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return ChatResult{}, newErr(KindInvalidBody, "chat message is empty")
	}
	if len(trimmed) > maxChatLen {
		trimmed = trimmed[:maxChatLen]
	}

	msg := ChatMessage{
		ID:        p.nextChatID(),
		AgentID:   agentID,
		AgentName: agent.Name,
		Message:   trimmed,
		CreatedAt: time.Now(),
	}

	if p.Persist != nil {
		if err := p.Persist.WriteChatMessage(msg); err != nil {
			return ChatResult{}, newRetryableErr(KindPersistenceUnavailable, "chat message could not be persisted")
		}
	}

	p.Store.TouchAgent(agentID)
	p.publish(Event{Kind: EventChat, Chat: &msg})

	return ChatResult{Status: "executed", Tick: p.Store.GetCurrentTick()}, nil
}

// systemChat posts a terminal (system-authored) message, used to announce
// successful builds; it shares the chat log conceptually but has its own id
// sequence since there is no authoring agent.
func (p *Pipeline) systemChat(message string) {
	msg := TerminalMessage{
		ID:        p.nextTerminalID(),
		Message:   message,
		CreatedAt: time.Now(),
	}
	if p.Persist != nil {
		_ = p.Persist.WriteTerminalMessage(msg)
	}
	p.publish(Event{Kind: EventTerminal, Terminal: &msg})
}
