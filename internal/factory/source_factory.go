package factory

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mailsentry/mailsentry/internal/adapters/imapsource"
	"github.com/mailsentry/mailsentry/internal/config"
	"github.com/mailsentry/mailsentry/internal/core"
)

// SourceFactory creates IMAP mail sources from the configured accounts
type SourceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSourceFactory creates a new mail source factory
func NewSourceFactory(cfg *config.Config, logger *zap.Logger) *SourceFactory {
	return &SourceFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// AccountSource pairs a connected mail source with its account address.
type AccountSource struct {
	Account string
	Source  core.MailSource
}

// CreateMailSources connects one mail source per configured account.
// An empty account list yields no sources and no error.
func (f *SourceFactory) CreateMailSources() ([]AccountSource, error) {
	imapCfg := f.cfg.GetIMAP()
	if len(imapCfg.Accounts) == 0 {
		return nil, nil
	}

	creds, err := imapsource.ParseCredentials(imapCfg.Accounts)
	if err != nil {
		return nil, err
	}

	hostsFile := imapCfg.HostsFile
	if !filepath.IsAbs(hostsFile) {
		hostsFile = filepath.Join(f.cfg.GetString("data.dir"), hostsFile)
	}
	hosts, err := imapsource.LoadHosts(hostsFile)
	if err != nil {
		return nil, err
	}

	sources := make([]AccountSource, 0, len(creds))
	for _, cred := range creds {
		host := hosts.HostForAccount(cred.Account)
		if host == "" {
			closeSources(sources)
			return nil, fmt.Errorf("no IMAP host for account %s", cred.Account)
		}
		source, err := imapsource.NewSource(host, cred.Account, cred.Password, imapCfg.QuarantineFolder, f.logger)
		if err != nil {
			closeSources(sources)
			return nil, err
		}
		sources = append(sources, AccountSource{Account: cred.Account, Source: source})
	}

	return sources, nil
}

func closeSources(sources []AccountSource) {
	for _, s := range sources {
		_ = s.Source.Close()
	}
}
