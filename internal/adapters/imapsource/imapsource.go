package imapsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"

	"github.com/mailsentry/mailsentry/internal/core"
	"github.com/mailsentry/mailsentry/internal/mailparse"
)

// Source reads unseen messages from a single IMAP mailbox and can move
// flagged ones to a quarantine folder.
type Source struct {
	conn             *client.Client
	account          string
	quarantineFolder string
	logger           *zap.Logger

	mu   sync.Mutex
	uids map[string]uint32
}

// NewSource dials the IMAP server over TLS and logs in. The returned
// source is bound to one account; use one Source per mailbox.
func NewSource(host, account, password, quarantineFolder string, logger *zap.Logger) (*Source, error) {
	if !strings.Contains(host, ":") {
		host += ":993"
	}

	conn, err := client.DialTLS(host, nil)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", host, err)
	}

	if err := conn.Login(account, password); err != nil {
		_ = conn.Logout()
		return nil, fmt.Errorf("could not login as %s: %w", account, err)
	}

	logger.Info("Connected to IMAP server",
		zap.String("host", host),
		zap.String("account", account))

	return &Source{
		conn:             conn,
		account:          account,
		quarantineFolder: quarantineFolder,
		logger:           logger,
		uids:             make(map[string]uint32),
	}, nil
}

// Fetch returns up to limit unseen messages from the inbox, newest last.
// Messages are left unread on the server.
func (s *Source) Fetch(ctx context.Context, limit int) ([]*core.EmailMessage, error) {
	if _, err := s.conn.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("could not select inbox: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := s.conn.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("could not search for unseen mails: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	fetchItems := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- s.conn.UidFetch(seqset, fetchItems, messages)
	}()

	var out []*core.EmailMessage
	for msg := range messages {
		if err := ctx.Err(); err != nil {
			// Drain the channel so the fetch goroutine can finish.
			for range messages {
			}
			<-done
			return nil, err
		}

		body := msg.GetBody(section)
		if body == nil {
			s.logger.Warn("Fetched message without a body section",
				zap.Uint32("uid", msg.Uid))
			continue
		}

		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("could not read mail body: %w", err)
		}

		parsed, err := mailparse.ParseMessage(bytes.NewReader(raw))
		if err != nil {
			s.logger.Warn("Skipping unparsable message",
				zap.Uint32("uid", msg.Uid),
				zap.Error(err))
			continue
		}
		parsed.ToEmail = firstNonEmpty(parsed.ToEmail, s.account)

		s.remember(parsed.MessageID, msg.Uid)
		out = append(out, parsed)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("could not fetch mails: %w", err)
	}

	return out, nil
}

// Quarantine moves a previously fetched message into the quarantine
// folder by copying it there and expunging the original.
func (s *Source) Quarantine(ctx context.Context, messageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	uid, ok := s.lookup(messageID)
	if !ok {
		return fmt.Errorf("unknown message id %q", messageID)
	}

	if _, err := s.conn.Select("INBOX", false); err != nil {
		return fmt.Errorf("could not select inbox: %w", err)
	}

	seqset := &imap.SeqSet{}
	seqset.AddNum(uid)

	if err := s.conn.UidCopy(seqset, s.quarantineFolder); err != nil {
		return fmt.Errorf("could not copy message to %s: %w", s.quarantineFolder, err)
	}

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.DeletedFlag}
	if err := s.conn.UidStore(seqset, item, flags, nil); err != nil {
		return fmt.Errorf("could not mark message as deleted: %w", err)
	}

	if err := s.conn.Expunge(nil); err != nil {
		return fmt.Errorf("could not expunge inbox: %w", err)
	}

	s.forget(messageID)
	s.logger.Info("Quarantined message",
		zap.String("message_id", messageID),
		zap.String("account", s.account),
		zap.String("folder", s.quarantineFolder))

	return nil
}

// Close logs out of the IMAP server.
func (s *Source) Close() error {
	return s.conn.Logout()
}

func (s *Source) remember(messageID string, uid uint32) {
	if messageID == "" {
		return
	}
	s.mu.Lock()
	s.uids[messageID] = uid
	s.mu.Unlock()
}

func (s *Source) lookup(messageID string) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.uids[messageID]
	return uid, ok
}

func (s *Source) forget(messageID string) {
	s.mu.Lock()
	delete(s.uids, messageID)
	s.mu.Unlock()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Hosts maps mail domains to their IMAP server addresses.
type Hosts map[string]string

// LoadHosts reads a domain-to-host JSON file.
func LoadHosts(path string) (Hosts, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read hosts file: %w", err)
	}
	var hosts Hosts
	if err := json.Unmarshal(raw, &hosts); err != nil {
		return nil, fmt.Errorf("could not parse hosts file %s: %w", path, err)
	}
	return hosts, nil
}

// HostForAccount resolves the IMAP host for an email address by its
// domain. Unknown domains fall back to the imap. subdomain convention.
func (h Hosts) HostForAccount(account string) string {
	at := strings.LastIndex(account, "@")
	if at < 0 || at == len(account)-1 {
		return ""
	}
	domain := strings.ToLower(account[at+1:])
	if host, ok := h[domain]; ok {
		return host
	}
	return "imap." + domain
}

// Credentials is one account entry from configuration, in the form
// "email:password".
type Credentials struct {
	Account  string
	Password string
}

// ParseCredentials splits configured account entries into credentials.
func ParseCredentials(entries []string) ([]Credentials, error) {
	creds := make([]Credentials, 0, len(entries))
	for _, entry := range entries {
		account, password, found := strings.Cut(entry, ":")
		if !found || account == "" || password == "" {
			return nil, fmt.Errorf("invalid account entry %q, expected email:password", entry)
		}
		creds = append(creds, Credentials{Account: account, Password: password})
	}
	return creds, nil
}
