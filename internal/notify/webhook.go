// Package notify provides webhook notifications for chain events.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bil-network/bil-node/internal/chain"
	"github.com/bil-network/bil-node/internal/config"
	"github.com/bil-network/bil-node/internal/util"
)

// Retry configuration
const (
	MaxRetries     = 3
	RetryBaseDelay = 2 * time.Second
)

// Notifier handles sending notifications
type Notifier struct {
	cfg      *config.NotifyConfig
	nodeName string
	client   *http.Client
}

// NewNotifier creates a new notifier
func NewNotifier(cfg *config.NotifyConfig, nodeName string) *Notifier {
	return &Notifier{
		cfg:      cfg,
		nodeName: nodeName,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NotifyBlockFound sends notifications when a block is accepted
func (n *Notifier) NotifyBlockFound(block *chain.Block, miner chain.Principal) {
	if !n.cfg.Enabled {
		return
	}

	if n.cfg.DiscordURL != "" {
		go n.sendDiscordBlockNotification(block, miner)
	}

	if n.cfg.TelegramBot != "" && n.cfg.TelegramChat != "" {
		go n.sendTelegramBlockNotification(block, miner)
	}
}

// NotifyMinerSpawned sends notifications when a new worker is created
func (n *Notifier) NotifyMinerSpawned(miner, owner chain.Principal) {
	if !n.cfg.Enabled {
		return
	}

	if n.cfg.DiscordURL != "" {
		go n.sendDiscordSpawnNotification(miner, owner)
	}

	if n.cfg.TelegramBot != "" && n.cfg.TelegramChat != "" {
		go n.sendTelegramSpawnNotification(miner, owner)
	}
}

// DiscordEmbed represents a Discord embed object
type DiscordEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	URL         string         `json:"url,omitempty"`
	Color       int            `json:"color,omitempty"`
	Fields      []DiscordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Footer      *DiscordFooter `json:"footer,omitempty"`
}

// DiscordField represents a field in a Discord embed
type DiscordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// DiscordFooter represents the footer of a Discord embed
type DiscordFooter struct {
	Text string `json:"text"`
}

// DiscordMessage represents a Discord webhook message
type DiscordMessage struct {
	Content string         `json:"content,omitempty"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

// sendDiscordBlockNotification sends a block accepted notification to Discord
func (n *Notifier) sendDiscordBlockNotification(block *chain.Block, miner chain.Principal) {
	embed := DiscordEmbed{
		Title:       "Block Mined!",
		Description: fmt.Sprintf("**%s** accepted a new block", n.nodeName),
		Color:       0x00FF00, // Green
		Fields: []DiscordField{
			{Name: "Height", Value: fmt.Sprintf("%d", block.Header.Height), Inline: true},
			{Name: "Difficulty", Value: fmt.Sprintf("%d", block.Header.Difficulty), Inline: true},
			{Name: "Transactions", Value: fmt.Sprintf("%d", len(block.Transactions)), Inline: true},
			{Name: "Miner", Value: truncatePrincipal(string(miner)), Inline: true},
			{Name: "Hash", Value: truncateHash(block.Hash.Hex()), Inline: false},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Footer: &DiscordFooter{
			Text: n.nodeName,
		},
	}

	if n.cfg.NodeURL != "" {
		embed.URL = n.cfg.NodeURL
	}

	msg := DiscordMessage{
		Embeds: []DiscordEmbed{embed},
	}

	n.sendDiscordMessageWithRetry(msg)
}

// sendDiscordSpawnNotification sends a worker creation notification to Discord
func (n *Notifier) sendDiscordSpawnNotification(miner, owner chain.Principal) {
	embed := DiscordEmbed{
		Title:       "Miner Spawned",
		Description: fmt.Sprintf("**%s** registered a new worker", n.nodeName),
		Color:       0x0099FF, // Blue
		Fields: []DiscordField{
			{Name: "Miner", Value: truncatePrincipal(string(miner)), Inline: true},
			{Name: "Owner", Value: truncatePrincipal(string(owner)), Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Footer: &DiscordFooter{
			Text: n.nodeName,
		},
	}

	msg := DiscordMessage{
		Embeds: []DiscordEmbed{embed},
	}

	n.sendDiscordMessageWithRetry(msg)
}

// sendDiscordMessageWithRetry sends a message to Discord with exponential backoff retry
func (n *Notifier) sendDiscordMessageWithRetry(msg DiscordMessage) {
	body, err := json.Marshal(msg)
	if err != nil {
		util.Warnf("Failed to marshal Discord message: %v", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 2s, then 4s
			delay := RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			time.Sleep(delay)
		}

		resp, err := n.client.Post(n.cfg.DiscordURL, "application/json", bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}

		resp.Body.Close()

		if resp.StatusCode < 400 {
			return // Success
		}

		// Rate limited - wait longer
		if resp.StatusCode == 429 {
			time.Sleep(5 * time.Second)
			continue
		}

		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}

	if lastErr != nil {
		util.Warnf("Failed to send Discord notification after %d attempts: %v", MaxRetries, lastErr)
	}
}

// TelegramMessage represents a Telegram bot message
type TelegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// sendTelegramBlockNotification sends a block accepted notification to Telegram
func (n *Notifier) sendTelegramBlockNotification(block *chain.Block, miner chain.Principal) {
	text := fmt.Sprintf(
		"*Block Mined!*\n\n"+
			"Height: `%d`\n"+
			"Difficulty: `%d`\n"+
			"Transactions: `%d`\n"+
			"Miner: `%s`\n"+
			"Hash: `%s`",
		block.Header.Height, block.Header.Difficulty, len(block.Transactions),
		truncatePrincipal(string(miner)), truncateHash(block.Hash.Hex()),
	)

	n.sendTelegramMessageWithRetry(text)
}

// sendTelegramSpawnNotification sends a worker creation notification to Telegram
func (n *Notifier) sendTelegramSpawnNotification(miner, owner chain.Principal) {
	text := fmt.Sprintf(
		"*Miner Spawned*\n\n"+
			"Miner: `%s`\n"+
			"Owner: `%s`",
		truncatePrincipal(string(miner)), truncatePrincipal(string(owner)),
	)

	n.sendTelegramMessageWithRetry(text)
}

// sendTelegramMessageWithRetry sends a message via the Telegram bot API with retry
func (n *Notifier) sendTelegramMessageWithRetry(text string) {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.cfg.TelegramBot)

	msg := TelegramMessage{
		ChatID:    n.cfg.TelegramChat,
		Text:      text,
		ParseMode: "Markdown",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		util.Warnf("Failed to marshal Telegram message: %v", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			delay := RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			time.Sleep(delay)
		}

		resp, err := n.client.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}

		resp.Body.Close()

		if resp.StatusCode < 400 {
			return
		}

		if resp.StatusCode == 429 {
			time.Sleep(5 * time.Second)
			continue
		}

		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}

	if lastErr != nil {
		util.Warnf("Failed to send Telegram notification after %d attempts: %v", MaxRetries, lastErr)
	}
}

// truncatePrincipal shortens a principal for display
func truncatePrincipal(p string) string {
	if len(p) <= 20 {
		return p
	}
	return p[:10] + "..." + p[len(p)-6:]
}

// truncateHash shortens a hash for display
func truncateHash(hash string) string {
	if len(hash) <= 20 {
		return hash
	}
	return hash[:12] + "..." + hash[len(hash)-6:]
}
