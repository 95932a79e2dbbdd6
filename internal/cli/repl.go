// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/counsellor/internal/counsellor"
	"github.com/jeranaias/counsellor/internal/health"
	"github.com/jeranaias/counsellor/internal/markdown"
	"github.com/jeranaias/counsellor/internal/model"
	"github.com/jeranaias/counsellor/internal/ui/chat"
)

// lineReader reads one line of user input.
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// scannerReader reads lines from a non-terminal input.
type scannerReader struct {
	sc *bufio.Scanner
}

func (r *scannerReader) Prompt(string) (string, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}

func (r *scannerReader) Close() error { return nil }

// =============================================================================
// SESSION NOTICES
// =============================================================================

// noticeLog collects what the session reports between prompts.
type noticeLog struct {
	mu          sync.Mutex
	stateNotice string
	notices     []string
	heard       string
}

// Notify is the session's event sink.
func (l *noticeLog) Notify(ev counsellor.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch e := ev.(type) {
	case counsellor.StateEvent:
		l.stateNotice = e.Notice
	case counsellor.NoticeEvent:
		l.notices = append(l.notices, e.Message)
	case counsellor.InputEvent:
		l.heard = e.Text
	}
}

func (l *noticeLog) lastStateNotice() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateNotice
}

// take returns and clears the pending notices and transcription.
func (l *noticeLog) take() (notices []string, heard string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	notices, heard = l.notices, l.heard
	l.notices, l.heard = nil, ""
	return notices, heard
}

// =============================================================================
// PLAIN CHAT
// =============================================================================

type plainChat struct {
	app     *app
	sess    *counsellor.Session
	notices *noticeLog
	in      lineReader
	out     io.Writer
	width   int
	now     func() time.Time
}

// runPlainChat runs the line-based chat until /quit or end of input.
func (rt *runtime) runPlainChat(ctx context.Context, cmd *cobra.Command, a *app) error {
	notices := &noticeLog{}
	sess, err := a.newSession(notices.Notify)
	if err != nil {
		return err
	}
	defer sess.Close()
	defer a.watchSignIn(notices.Notify)()

	var in lineReader
	if Interactive() {
		in = newInputHistory()
	} else {
		in = &scannerReader{sc: bufio.NewScanner(cmd.InOrStdin())}
	}
	defer in.Close()

	c := &plainChat{
		app:     a,
		sess:    sess,
		notices: notices,
		in:      in,
		out:     cmd.OutOrStdout(),
		width:   replyWidth(rt.cfg.UI.MarkdownWidth),
		now:     time.Now,
	}
	return c.run(ctx)
}

func (c *plainChat) run(ctx context.Context) error {
	c.welcome(ctx)

	for {
		c.flushNotices()

		input, err := c.in.Prompt(PromptStyle.Render("you> "))
		if err != nil {
			// Ctrl+C, Ctrl+D or end of piped input.
			fmt.Fprintln(c.out)
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := c.command(ctx, input)
			if err != nil {
				DisplayError(c.out, err)
			}
			if quit {
				return nil
			}
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}

		c.send(ctx, func(ctx context.Context) (counsellor.State, error) {
			return c.sess.Send(ctx, input)
		})
	}
}

// welcome checks the backend and resumes the most recent conversation.
func (c *plainChat) welcome(ctx context.Context) {
	fmt.Fprintln(c.out, TitleStyle.Render("AI Counsellor"))
	fmt.Fprintln(c.out, DimStyle.Render("Type a message, or /help for commands."))
	fmt.Fprintln(c.out)

	if c.app.prober.Probe(ctx) != health.Ready {
		fmt.Fprintf(c.out, "%s %s\n\n", warnMark(), health.WakingMessage)
	} else if err := c.sess.Resume(ctx); err != nil {
		DisplayError(c.out, err)
	} else if id := c.sess.ActiveConversation(); id != "" {
		c.printTranscript()
		return
	}
	c.printSuggestions()
}

// send runs one pipeline call and prints its outcome.
func (c *plainChat) send(ctx context.Context, do func(context.Context) (counsellor.State, error)) {
	before := len(c.sess.Messages())
	fmt.Fprintln(c.out, DimStyle.Render("Counsellor is thinking..."))

	state, err := do(ctx)
	if err != nil {
		DisplayError(c.out, err)
		return
	}
	// Later commands read the store, so finish writing this exchange first.
	c.sess.Drain()

	msgs := c.sess.Messages()
	if before > len(msgs) {
		before = 0
	}
	for _, m := range msgs[before:] {
		if m.IsAssistant() {
			c.printReply(m)
		}
	}

	notice := c.notices.lastStateNotice()
	switch state {
	case counsellor.StateWaking:
		fmt.Fprintf(c.out, "%s %s\n", warnMark(), notice)
		fmt.Fprintln(c.out, DimStyle.Render("Type /retry to try again."))
	case counsellor.StateFailed:
		if notice != "" {
			fmt.Fprintf(c.out, "%s %s\n", failMark(), notice)
		}
	}
}

func (c *plainChat) flushNotices() {
	notices, heard := c.notices.take()
	for _, n := range notices {
		fmt.Fprintf(c.out, "%s %s\n", warnMark(), n)
	}
	if heard != "" {
		fmt.Fprintf(c.out, "%s %s\n", RenderLabel("Heard:"), heard)
		fmt.Fprintln(c.out, DimStyle.Render("Type /send to send it."))
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// command handles a slash command and reports whether to quit.
func (c *plainChat) command(ctx context.Context, input string) (bool, error) {
	fields := strings.Fields(input)
	name := strings.ToLower(fields[0])
	arg := strings.TrimSpace(strings.TrimPrefix(input, fields[0]))

	switch name {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/help", "/?":
		c.printHelp()

	case "/new":
		if err := c.sess.NewConversation(); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "%s Started a new conversation.\n", okMark())
		c.printSuggestions()

	case "/retry":
		c.send(ctx, c.sess.Retry)

	case "/history":
		convs, err := c.sess.Conversations(ctx)
		if err != nil {
			return false, err
		}
		printConversationList(c.out, convs, c.sess.ActiveConversation(), c.now())

	case "/open":
		if arg == "" {
			return false, usageErrorf("usage: /open <number or id>")
		}
		conv, err := c.app.store.Lookup(ctx, arg)
		if err != nil {
			return false, err
		}
		if err := c.sess.Select(ctx, conv.ID); err != nil {
			return false, err
		}
		fmt.Fprintln(c.out, SectionStyle.Render(conv.Title))
		c.printTranscript()

	case "/rename":
		id := c.sess.ActiveConversation()
		if id == "" {
			return false, errors.New("nothing to rename yet")
		}
		if arg == "" {
			return false, usageErrorf("usage: /rename <title>")
		}
		if err := c.sess.Rename(ctx, id, arg); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "%s Renamed.\n", okMark())

	case "/delete":
		id := c.sess.ActiveConversation()
		if arg != "" {
			conv, err := c.app.store.Lookup(ctx, arg)
			if err != nil {
				return false, err
			}
			id = conv.ID
		}
		if id == "" {
			return false, errors.New("nothing to delete")
		}
		if err := c.sess.Delete(ctx, id); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "%s Deleted.\n", okMark())

	case "/suggest":
		if arg == "" {
			c.printSuggestions()
			break
		}
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(chat.QuickPrompts) {
			return false, usageErrorf("pick a suggestion from 1 to %d", len(chat.QuickPrompts))
		}
		prompt := chat.QuickPrompts[n-1]
		fmt.Fprintf(c.out, "%s %s\n", UserStyle.Render("You:"), prompt)
		c.send(ctx, func(ctx context.Context) (counsellor.State, error) {
			return c.sess.Send(ctx, prompt)
		})

	case "/record":
		recording, err := c.sess.ToggleRecording(ctx)
		if err != nil {
			return false, err
		}
		if recording {
			fmt.Fprintln(c.out, DimStyle.Render("Recording... type /record again to stop."))
		} else {
			fmt.Fprintln(c.out, DimStyle.Render("Transcribing..."))
		}

	case "/send":
		c.send(ctx, c.sess.Submit)

	case "/speak":
		last, ok := lastReply(c.sess.Messages())
		if !ok {
			return false, errors.New("no reply to read aloud")
		}
		if err := c.sess.Speak(ctx, last.LocalID); err != nil {
			return false, err
		}

	default:
		return false, usageErrorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

// =============================================================================
// OUTPUT
// =============================================================================

func (c *plainChat) printReply(m model.Message) {
	fmt.Fprintln(c.out, AssistantStyle.Render(model.RoleAssistant.DisplayName()+":"))
	fmt.Fprint(c.out, markdown.RenderTerminal(m.Content, c.width))
	for _, a := range m.Actions {
		fmt.Fprintf(c.out, "  %s %s\n", okMark(), a.Label())
	}
	fmt.Fprintln(c.out)
}

func (c *plainChat) printTranscript() {
	for _, m := range c.sess.Messages() {
		if m.IsUser() {
			fmt.Fprintf(c.out, "%s %s\n\n", UserStyle.Render(model.RoleUser.DisplayName()+":"), m.Content)
			continue
		}
		c.printReply(m)
	}
}

func (c *plainChat) printSuggestions() {
	fmt.Fprintln(c.out, "Suggestions:")
	for i, p := range chat.QuickPrompts {
		fmt.Fprintf(c.out, "  %d. %s\n", i+1, p)
	}
	fmt.Fprintln(c.out, DimStyle.Render("Type /suggest <n> to ask one."))
	fmt.Fprintln(c.out)
}

func (c *plainChat) printHelp() {
	rows := [][2]string{
		{"/new", "start a new conversation"},
		{"/retry", "resend your last message"},
		{"/history", "list saved conversations"},
		{"/open <n|id>", "reopen a conversation"},
		{"/rename <title>", "rename this conversation"},
		{"/delete [n|id]", "delete a conversation"},
		{"/suggest [n]", "show or ask a suggested question"},
		{"/record", "start or stop voice input"},
		{"/send", "send the transcribed voice input"},
		{"/speak", "read the last reply aloud"},
		{"/quit", "leave the chat"},
	}
	for _, r := range rows {
		fmt.Fprintf(c.out, "  %s %s\n", LabelStyle.Width(18).Render(r[0]), r[1])
	}
}

// lastReply returns the newest assistant message.
func lastReply(msgs []model.Message) (model.Message, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsAssistant() {
			return msgs[i], true
		}
	}
	return model.Message{}, false
}
