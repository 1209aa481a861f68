package xmpp

import (
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-xmpp"
	log "github.com/sirupsen/logrus"
)

var ErrConfig = errors.New("missing xmpp config")

type (
	// Config for the notifier.
	Config struct {
		Host     string
		Jid      string
		Password string
		To       string
		Insecure bool
	}

	Xmpp struct {
		Config Config
	}
)

func (c Config) Enabled() bool {
	return len(c.Jid) > 0 && len(c.Password) > 0 && len(c.To) > 0
}

func serverName(jid string) string {
	parts := strings.SplitN(jid, "@", 2)
	if len(parts) < 2 {
		return jid
	}
	return strings.Split(parts[1], "/")[0]
}

func (x Xmpp) Send(message string) error {

	if !x.Config.Enabled() {
		log.Warn("Missing xmpp config")
		return ErrConfig
	}

	if len(x.Config.Host) == 0 {
		x.Config.Host = serverName(x.Config.Jid)
	}

	if x.Config.Insecure {
		xmpp.DefaultConfig = tls.Config{
			InsecureSkipVerify: true,
		}
	}

	options := xmpp.Options{
		Host:          x.Config.Host,
		User:          x.Config.Jid,
		Password:      x.Config.Password,
		NoTLS:         true,
		StartTLS:      true,
		Debug:         false,
		Session:       false,
		Status:        "xa",
		StatusMessage: "Racing",
	}

	log.WithField("host", options.Host).Debug("Create xmpp client")
	talk, err := options.NewClient()
	if err != nil {
		log.WithError(err).Error("Error creating xmpp client")
		return err
	}
	defer talk.Close()

	_, err = talk.Send(xmpp.Chat{Remote: x.Config.To, Type: "chat", Text: message})
	return err
}

// FinishMessage is the text sent when a race ends.
func FinishMessage(player, course string, finished bool, elapsed time.Duration, distanceNm float64) string {
	if player == "" {
		player = "Skipper"
	}
	if !finished {
		return fmt.Sprintf("%s ran out of time on %s after %.0f nm", player, course, distanceNm)
	}
	days := int(elapsed.Hours()) / 24
	rest := elapsed - time.Duration(days)*24*time.Hour
	return fmt.Sprintf("%s finished %s in %dd %s, %.0f nm sailed", player, course, days, rest.Truncate(time.Second), distanceNm)
}
