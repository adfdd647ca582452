// Package services defines the persisted domain types of the IRC services
// daemon (accounts, bots, registered channels, and channel access entries)
// and the channel administration operations built upon them.
package services

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.ircservices.dev/core/serialize"
)

// Names of the domain Types.
const (
	AccountType = "Account"
	BotType     = "Bot"
	ChannelType = "Channel"
	AccessType  = "Access"
)

var (
	// ErrExists is returned when registering a name which is already registered.
	ErrExists = errors.New("already registered")
	// ErrNotFound is returned when a named object doesn't exist.
	ErrNotFound = errors.New("not registered")
	// ErrChannelSymbol is returned for channel names not beginning with '#'.
	ErrChannelSymbol = errors.New("channel names must begin with '#'")
	// ErrReasonRequired is returned by Forbid when a reason is required but absent.
	ErrReasonRequired = errors.New("a reason is required")
	// ErrSuccessorIsFounder is returned when naming a channel's founder as its successor.
	ErrSuccessorIsFounder = errors.New("the founder can't be the successor")
)

func scalar(name string) serialize.Field { return serialize.Field{Name: name} }

func ref(name, target string) serialize.Field {
	return serialize.Field{Name: name, Kind: serialize.Reference, Target: target}
}

// RegisterTypes registers the domain Types with the Registry.
func RegisterTypes(reg *serialize.Registry) error {
	var types = []struct {
		name   string
		fields []serialize.Field
	}{
		{AccountType, []serialize.Field{
			scalar("display"), scalar("email"), scalar("password"),
			scalar("language"), scalar("registered"),
		}},
		{BotType, []serialize.Field{
			scalar("nick"), scalar("user"), scalar("host"),
			scalar("realname"), scalar("created"),
		}},
		{ChannelType, []serialize.Field{
			scalar("name"),
			ref("founder", AccountType),
			ref("successor", AccountType),
			scalar("description"), scalar("topic"), scalar("keeptopic"),
			scalar("forbidden"), scalar("forbidby"), scalar("forbidreason"),
			ref("bot", BotType),
			scalar("registered"),
		}},
		{AccessType, []serialize.Field{
			ref("channel", ChannelType),
			scalar("mask"), scalar("level"), scalar("creator"),
		}},
	}
	for _, t := range types {
		if _, err := reg.Register(t.name, t.fields...); err != nil {
			return err
		}
	}
	return reg.Validate()
}

// Services implements domain operations over Objects.
type Services struct {
	objs *serialize.Objects

	account, bot, channel, access *serialize.Type

	// Now returns the current time. It may be replaced by tests.
	Now func() time.Time
}

// New returns Services of Objects, whose Registry must have the domain Types.
func New(objs *serialize.Objects) (*Services, error) {
	var s = &Services{objs: objs, Now: time.Now}

	for name, t := range map[string]**serialize.Type{
		AccountType: &s.account,
		BotType:     &s.bot,
		ChannelType: &s.channel,
		AccessType:  &s.access,
	} {
		if *t = objs.Registry().Type(name); *t == nil {
			return nil, errors.Errorf("type %s is not registered", name)
		}
	}
	return s, nil
}

func (s *Services) timestamp() string { return strconv.FormatInt(s.Now().Unix(), 10) }

// set applies |values| to |o|, in order of alternating field name and value.
func (s *Services) set(o *serialize.Object, values ...string) error {
	for i := 0; i+1 < len(values); i += 2 {
		if err := s.objs.Set(o, values[i], values[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Services) flag(o *serialize.Object, name string) (bool, error) {
	var v, ok, err = s.objs.Get(o, name)
	return ok && v == "1", err
}

func (s *Services) setFlag(o *serialize.Object, name string, on bool) error {
	if on {
		return s.objs.Set(o, name, "1")
	}
	return s.objs.Unset(o, name)
}

// RegisterAccount registers an account with a |display| name.
func (s *Services) RegisterAccount(display, email, password string) (*serialize.Object, error) {
	if _, ok, err := s.objs.Find(s.account, "display", display); err != nil {
		return nil, err
	} else if ok {
		return nil, errors.WithMessagef(ErrExists, "account %s", display)
	}

	var o, err = s.objs.New(s.account)
	if err != nil {
		return nil, err
	}
	if err = s.set(o,
		"display", display,
		"email", email,
		"password", password,
		"registered", s.timestamp(),
	); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"account": display, "id": o.ID}).Info("registered account")
	return o, nil
}

// FindAccount returns the account having |display| name.
func (s *Services) FindAccount(display string) (*serialize.Object, bool, error) {
	return s.objs.Find(s.account, "display", display)
}

// CreateBot creates a service bot.
func (s *Services) CreateBot(nick, user, host, realname string) (*serialize.Object, error) {
	if _, ok, err := s.objs.Find(s.bot, "nick", nick); err != nil {
		return nil, err
	} else if ok {
		return nil, errors.WithMessagef(ErrExists, "bot %s", nick)
	}

	var o, err = s.objs.New(s.bot)
	if err != nil {
		return nil, err
	}
	if err = s.set(o,
		"nick", nick,
		"user", user,
		"host", host,
		"realname", realname,
		"created", s.timestamp(),
	); err != nil {
		return nil, err
	}
	return o, nil
}

// FindBot returns the bot having |nick|.
func (s *Services) FindBot(nick string) (*serialize.Object, bool, error) {
	return s.objs.Find(s.bot, "nick", nick)
}

// ChangeBot changes the nick, user, host and realname of |bot|. Empty
// values are left unchanged. The nick may not be that of another bot.
func (s *Services) ChangeBot(bot *serialize.Object, nick, user, host, realname string) error {
	if nick != "" {
		if other, ok, err := s.FindBot(nick); err != nil {
			return err
		} else if ok && other.ID != bot.ID {
			return errors.WithMessagef(ErrExists, "bot %s", nick)
		}
	}
	for _, kv := range [][2]string{{"nick", nick}, {"user", user}, {"host", host}, {"realname", realname}} {
		if kv[1] == "" {
			continue
		} else if err := s.objs.Set(bot, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

// DeleteBot unassigns |bot| from each of its channels, and then deletes it.
func (s *Services) DeleteBot(bot *serialize.Object) error {
	var chans, err = s.BotChannels(bot)
	if err != nil {
		return err
	}
	for _, ch := range chans {
		if err = s.UnassignBot(ch); err != nil {
			return errors.WithMessagef(err, "unassigning %s", ch)
		}
	}
	if err = s.objs.Delete(bot); err != nil {
		return err
	}
	log.WithFields(log.Fields{"bot": bot, "channels": len(chans)}).Info("deleted bot")
	return nil
}

// RegisterChannel registers channel |name| to |founder|.
func (s *Services) RegisterChannel(name string, founder *serialize.Object) (*serialize.Object, error) {
	if !strings.HasPrefix(name, "#") {
		return nil, ErrChannelSymbol
	} else if _, ok, err := s.FindChannel(name); err != nil {
		return nil, err
	} else if ok {
		return nil, errors.WithMessagef(ErrExists, "channel %s", name)
	}

	var o, err = s.objs.New(s.channel)
	if err != nil {
		return nil, err
	}
	if err = s.set(o, "name", name, "registered", s.timestamp()); err != nil {
		return nil, err
	} else if err = s.objs.SetRef(o, "founder", founder); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"channel": name, "founder": founder}).Info("registered channel")
	return o, nil
}

// FindChannel returns the registration of channel |name|.
func (s *Services) FindChannel(name string) (*serialize.Object, bool, error) {
	return s.objs.Find(s.channel, "name", name)
}

// DropChannel removes channel |ch| and its access entries.
func (s *Services) DropChannel(ch *serialize.Object) error {
	var entries, err = s.AccessList(ch)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err = s.objs.Delete(e); err != nil {
			return err
		}
	}
	return s.objs.Delete(ch)
}

// Forbid channel |name|, replacing any existing registration with a
// forbidden one which records the forbidding nick and reason.
func (s *Services) Forbid(name, by, reason string, requireReason bool) (*serialize.Object, error) {
	if requireReason && reason == "" {
		return nil, ErrReasonRequired
	} else if !strings.HasPrefix(name, "#") {
		return nil, ErrChannelSymbol
	}

	if prior, ok, err := s.FindChannel(name); err != nil {
		return nil, err
	} else if ok {
		if err = s.DropChannel(prior); err != nil {
			return nil, errors.WithMessagef(err, "dropping %s", name)
		}
	}

	var o, err = s.objs.New(s.channel)
	if err != nil {
		return nil, err
	}
	if err = s.set(o,
		"name", name,
		"forbidden", "1",
		"forbidby", by,
		"forbidreason", reason,
		"registered", s.timestamp(),
	); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"channel": name, "by": by, "reason": reason}).Warn("forbade channel")
	return o, nil
}

// IsForbidden returns whether channel |ch| is forbidden.
func (s *Services) IsForbidden(ch *serialize.Object) (bool, error) { return s.flag(ch, "forbidden") }

// SetKeepTopic sets whether the topic of channel |ch| is retained.
func (s *Services) SetKeepTopic(ch *serialize.Object, on bool) error {
	return s.setFlag(ch, "keeptopic", on)
}

// KeepTopic returns whether the topic of channel |ch| is retained.
func (s *Services) KeepTopic(ch *serialize.Object) (bool, error) { return s.flag(ch, "keeptopic") }

// SetFounder transfers channel |ch| to |founder|. A successor equal to the
// new founder is cleared.
func (s *Services) SetFounder(ch, founder *serialize.Object) error {
	if founder == nil {
		return errors.New("a channel must have a founder")
	}
	if succ, ok, err := s.Successor(ch); err != nil {
		return err
	} else if ok && succ.ID == founder.ID {
		if err = s.objs.SetRef(ch, "successor", nil); err != nil {
			return err
		}
	}
	return s.objs.SetRef(ch, "founder", founder)
}

// Founder returns the founder of channel |ch|.
func (s *Services) Founder(ch *serialize.Object) (*serialize.Object, bool, error) {
	return s.objs.GetRef(ch, "founder")
}

// SetSuccessor sets the successor of channel |ch|, which inherits it
// should the founder's account be dropped. A nil |successor| clears it.
func (s *Services) SetSuccessor(ch, successor *serialize.Object) error {
	if successor == nil {
		return s.objs.SetRef(ch, "successor", nil)
	}
	if founder, ok, err := s.Founder(ch); err != nil {
		return err
	} else if ok && founder.ID == successor.ID {
		return ErrSuccessorIsFounder
	}
	return s.objs.SetRef(ch, "successor", successor)
}

// Successor returns the successor of channel |ch|.
func (s *Services) Successor(ch *serialize.Object) (*serialize.Object, bool, error) {
	return s.objs.GetRef(ch, "successor")
}

// SetDescription sets the description of channel |ch|. An empty
// |description| clears it.
func (s *Services) SetDescription(ch *serialize.Object, description string) error {
	if description == "" {
		return s.objs.Unset(ch, "description")
	}
	return s.objs.Set(ch, "description", description)
}

// Description returns the description of channel |ch|.
func (s *Services) Description(ch *serialize.Object) (string, bool, error) {
	return s.objs.Get(ch, "description")
}

// AssignBot assigns |bot| to channel |ch|.
func (s *Services) AssignBot(ch, bot *serialize.Object) error {
	return s.objs.SetRef(ch, "bot", bot)
}

// UnassignBot removes the bot of channel |ch|.
func (s *Services) UnassignBot(ch *serialize.Object) error {
	return s.objs.SetRef(ch, "bot", nil)
}

// BotChannels returns the channels to which |bot| is assigned.
func (s *Services) BotChannels(bot *serialize.Object) ([]*serialize.Object, error) {
	return s.referrers(bot, s.channel, "bot")
}

// AddAccess adds or updates the access entry of |mask| on channel |ch|.
func (s *Services) AddAccess(ch *serialize.Object, mask string, level int, creator string) (*serialize.Object, error) {
	var entries, err = s.AccessList(ch)
	if err != nil {
		return nil, err
	}

	var entry *serialize.Object
	for _, e := range entries {
		if m, _, err := s.objs.Get(e, "mask"); err != nil {
			return nil, err
		} else if strings.EqualFold(m, mask) {
			entry = e
			break
		}
	}
	if entry == nil {
		if entry, err = s.objs.New(s.access); err != nil {
			return nil, err
		} else if err = s.objs.SetRef(entry, "channel", ch); err != nil {
			return nil, err
		}
	}
	if err = s.set(entry,
		"mask", mask,
		"level", strconv.Itoa(level),
		"creator", creator,
	); err != nil {
		return nil, err
	}
	return entry, nil
}

// AccessLevel returns the level of access |entry|.
func (s *Services) AccessLevel(entry *serialize.Object) (int, error) {
	var v, ok, err = s.objs.Get(entry, "level")
	if err != nil || !ok {
		return 0, err
	}
	level, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.WithMessagef(serialize.ErrCorrupt, "%s.level: %v", entry, err)
	}
	return level, nil
}

// AccessList returns the access entries of channel |ch|, ordered by ID.
func (s *Services) AccessList(ch *serialize.Object) ([]*serialize.Object, error) {
	return s.referrers(ch, s.access, "channel")
}

// referrers returns Objects of |t| which reference |o| through Field |field|.
func (s *Services) referrers(o *serialize.Object, t *serialize.Type, field string) ([]*serialize.Object, error) {
	var edges, err = s.objs.Edges(o, t)
	if err != nil {
		return nil, err
	}
	var out []*serialize.Object
	for _, e := range edges {
		if e.Field.Name == field && !e.Outgoing {
			out = append(out, e.Other)
		}
	}
	return out, nil
}
