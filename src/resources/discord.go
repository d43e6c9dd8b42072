package resources

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/stake-plus/ibots/src/bots/core"
	"github.com/stake-plus/ibots/src/logging"
)

const (
	MaxDiscordMessageLen = 2000
	SafeChunkLen         = 1900
)

var urlPattern = regexp.MustCompile(`https?://[^\s\[\]()<>]+`)

func init() {
	Register("discord", NewDiscord)
}

// messageSender is the slice of *discordgo.Session the resource uses.
type messageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts operator instructions to a channel:
//
//	say:<text>   post text, chunked to fit Discord's limit
//	channel      report the configured channel id
type Discord struct {
	mu      *sync.Mutex
	sender  messageSender
	channel string
	noEmbed bool
	log     zerolog.Logger
}

// NewDiscord is the discord Factory. Args: token, channel, embeds (bool,
// default false which wraps links so Discord does not unfurl them).
func NewDiscord(mu *sync.Mutex, args map[string]any) (core.Resource, error) {
	token := stringArg(args, "token")
	if token == "" {
		return nil, fmt.Errorf("%w: discord token", ErrMissingArg)
	}
	channel := stringArg(args, "channel")
	if channel == "" {
		return nil, fmt.Errorf("%w: discord channel", ErrMissingArg)
	}
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("resources: discord session: %w", err)
	}
	embeds, _ := args["embeds"].(bool)
	return newDiscord(mu, dg, channel, !embeds), nil
}

func newDiscord(mu *sync.Mutex, sender messageSender, channel string, noEmbed bool) *Discord {
	return &Discord{
		mu:      mu,
		sender:  sender,
		channel: channel,
		noEmbed: noEmbed,
		log:     logging.ForComponent("resource.discord").With().Str("channel", channel).Logger(),
	}
}

func (d *Discord) Command(_ context.Context, instruction string) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	verb, text, _ := strings.Cut(strings.TrimSpace(instruction), ":")
	switch strings.ToLower(strings.TrimSpace(verb)) {
	case "say":
		return d.say(strings.TrimSpace(text))
	case "channel":
		return d.channel, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstruction, instruction)
	}
}

func (d *Discord) say(text string) ([]string, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: nothing to say", ErrMissingArg)
	}
	if d.noEmbed {
		text = WrapURLsNoEmbed(text)
	}
	var ids []string
	for _, chunk := range BuildLongMessages(text) {
		msg, err := d.sender.ChannelMessageSend(d.channel, chunk)
		if err != nil {
			d.log.Error().Err(err).Msg("failed to send message")
			return ids, fmt.Errorf("resources: discord send: %w", err)
		}
		if msg != nil {
			ids = append(ids, msg.ID)
		}
	}
	d.log.Info().Int("messages", len(ids)).Msg("posted")
	return ids, nil
}

// WrapURLsNoEmbed wraps URLs in angle brackets to prevent Discord embeds.
func WrapURLsNoEmbed(text string) string {
	return urlPattern.ReplaceAllStringFunc(text, func(u string) string {
		trimmed := strings.TrimRight(u, ".,;:!?)")
		return "<" + trimmed + ">" + u[len(trimmed):]
	})
}

// BuildLongMessages splits a message into Discord-sized chunks, breaking on
// paragraphs, then words.
func BuildLongMessages(message string) []string {
	if len(message) <= MaxDiscordMessageLen {
		return []string{message}
	}

	var chunks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}
	add := func(piece, sep string) {
		if cur.Len() > 0 && cur.Len()+len(sep)+len(piece) > SafeChunkLen {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString(sep)
		}
		cur.WriteString(piece)
	}

	for _, paragraph := range strings.Split(message, "\n\n") {
		if len(paragraph) <= SafeChunkLen {
			add(paragraph, "\n\n")
			continue
		}
		flush()
		for _, word := range strings.Fields(paragraph) {
			for len(word) > SafeChunkLen {
				add(word[:SafeChunkLen], " ")
				word = word[SafeChunkLen:]
			}
			add(word, " ")
		}
		flush()
	}
	flush()

	for i := 0; i < len(chunks)-1; i++ {
		chunks[i] += "\n*(continued...)*"
	}
	return chunks
}
