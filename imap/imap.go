package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	imapv2 "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/circuitsaga/payvoice/mailtext"
	"github.com/circuitsaga/payvoice/model"
)

type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	Mailbox            string
	UseTLS             bool
	InsecureSkipVerify bool
}

// Client dials one short-lived IMAP session per poll cycle.
type Client struct {
	opts   Options
	logger *slog.Logger
}

func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("imap host is empty")
	}
	if opts.Port <= 0 {
		return nil, fmt.Errorf("imap port must be positive")
	}
	if opts.Username == "" {
		return nil, fmt.Errorf("imap username is empty")
	}
	return &Client{opts: opts, logger: logger}, nil
}

// Session is one logged-in connection with the watched mailbox selected.
type Session struct {
	client    *imapclient.Client
	logger    *slog.Logger
	stopClose func() bool
}

// Dial connects, authenticates and selects the watched mailbox. The caller
// owns the returned session and must Close it.
func (c *Client) Dial(ctx context.Context) (*Session, error) {
	address := net.JoinHostPort(c.opts.Host, strconv.Itoa(c.opts.Port))
	options := &imapclient.Options{}

	if c.opts.UseTLS {
		options.TLSConfig = &tls.Config{
			ServerName:         c.opts.Host,
			InsecureSkipVerify: c.opts.InsecureSkipVerify,
		}
	}

	var (
		client *imapclient.Client
		err    error
	)

	if c.opts.UseTLS {
		client, err = imapclient.DialTLS(address, options)
	} else {
		client, err = imapclient.DialInsecure(address, options)
	}
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", address, err)
	}

	if err := client.Login(c.opts.Username, c.opts.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("imap login failed: %w", err)
	}

	mailbox := c.mailbox()
	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("select mailbox %s: %w", mailbox, err)
	}

	if c.logger != nil {
		c.logger.Debug("imap session established", "address", address, "user", c.opts.Username, "mailbox", mailbox, "tls", c.opts.UseTLS)
	}

	stopClose := context.AfterFunc(ctx, func() {
		_ = client.Close()
	})

	return &Session{client: client, logger: c.logger, stopClose: stopClose}, nil
}

func (c *Client) mailbox() string {
	if c.opts.Mailbox == "" {
		return "INBOX"
	}
	return c.opts.Mailbox
}

// UnseenUIDs lists unread messages in transport order, oldest first.
func (s *Session) UnseenUIDs(ctx context.Context) ([]uint32, error) {
	criteria := &imapv2.SearchCriteria{
		NotFlag: []imapv2.Flag{imapv2.FlagSeen},
	}

	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search unseen: %w", err)
	}

	uids := data.AllUIDs()
	out := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		out = append(out, uint32(uid))
	}
	return out, nil
}

// Fetch retrieves the full message and extracts its plain-text body.
func (s *Session) Fetch(ctx context.Context, uid uint32) (model.InboxMessage, error) {
	section := &imapv2.FetchItemBodySection{}
	fetchOptions := &imapv2.FetchOptions{
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imapv2.FetchItemBodySection{section},
	}

	messages, err := s.client.Fetch(imapv2.UIDSetNum(imapv2.UID(uid)), fetchOptions).Collect()
	if err != nil {
		return model.InboxMessage{}, fmt.Errorf("fetch %d: %w", uid, err)
	}
	if len(messages) == 0 {
		return model.InboxMessage{}, fmt.Errorf("fetch %d: no data returned", uid)
	}

	buffer := messages[0]
	msg := model.InboxMessage{
		UID:        uid,
		ReceivedAt: buffer.InternalDate,
	}
	if buffer.Envelope != nil {
		msg.Subject = buffer.Envelope.Subject
		if len(buffer.Envelope.From) > 0 {
			msg.From = buffer.Envelope.From[0].Addr()
		}
	}

	raw := buffer.FindBodySection(section)
	body, err := mailtext.FirstPlain(raw)
	if err != nil {
		// A body the library cannot parse is still worth handing to the
		// extractor; fall back to the raw bytes.
		if s.logger != nil {
			s.logger.Debug("body parse failed, using raw payload", "uid", uid, "err", err)
		}
		body = string(raw)
	}
	msg.Body = body

	return msg, nil
}

// MarkSeen flags the message as read so it is never reprocessed.
func (s *Session) MarkSeen(ctx context.Context, uid uint32) error {
	flags := &imapv2.StoreFlags{
		Op:     imapv2.StoreFlagsAdd,
		Silent: true,
		Flags:  []imapv2.Flag{imapv2.FlagSeen},
	}

	if err := s.client.Store(imapv2.UIDSetNum(imapv2.UID(uid)), flags, nil).Close(); err != nil {
		return fmt.Errorf("store seen flag on %d: %w", uid, err)
	}
	return nil
}

// Close logs out and drops the connection.
func (s *Session) Close() error {
	s.stopClose()

	err := s.client.Logout().Wait()
	if err != nil && s.logger != nil {
		s.logger.Warn("imap logout failed", "err", err)
	}
	if cerr := s.client.Close(); cerr != nil && s.logger != nil {
		s.logger.Debug("imap connection closed", "err", cerr)
	}
	return err
}
