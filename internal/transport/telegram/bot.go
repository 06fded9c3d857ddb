// Package telegram adapts the tutor services to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tutorbot/internal/domain"
	domref "github.com/kailas-cloud/tutorbot/internal/domain/referral"
	"github.com/kailas-cloud/tutorbot/internal/domain/user"
	referraluc "github.com/kailas-cloud/tutorbot/internal/usecase/referral"
	tutoruc "github.com/kailas-cloud/tutorbot/internal/usecase/tutor"
)

// Config holds the bot settings.
type Config struct {
	Token               string
	BotUsername         string
	ChannelID           int64
	ChannelInviteLink   string
	FreeDailyLimit      int
	ReferralsForPremium int
	Location            *time.Location
}

// Services groups the use cases the bot drives.
type Services struct {
	Onboarding Onboarder
	Profiles   Profiles
	Tutor      Tutor
	Sessions   Sessions
	Admin      Admin
}

// Bot handles Telegram updates.
type Bot struct {
	bot    *telego.Bot
	api    api
	cfg    Config
	svc    Services
	logger *zap.Logger
}

// New creates a bot backed by the Telegram Bot API.
func New(cfg Config, svc Services, logger *zap.Logger) (*Bot, error) {
	tg, err := telego.NewBot(cfg.Token, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	b := newBot(tg, cfg, svc, logger)
	b.bot = tg
	return b, nil
}

func newBot(a api, cfg Config, svc Services, logger *zap.Logger) *Bot {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Bot{api: a, cfg: cfg, svc: svc, logger: logger}
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	updates, err := b.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	bh, err := th.NewBotHandler(b.bot, updates)
	if err != nil {
		return fmt.Errorf("create bot handler: %w", err)
	}
	b.register(bh)

	b.logger.Info("telegram bot started", zap.String("bot", b.cfg.BotUsername))
	if err := bh.Start(); err != nil {
		return fmt.Errorf("bot handler: %w", err)
	}
	return nil
}

// register wires handlers in priority order: the first matching route wins.
func (b *Bot) register(bh *th.BotHandler) {
	onMessage := func(fn func(context.Context, *telego.Message) error) th.Handler {
		return func(ctx *th.Context, update telego.Update) error {
			return fn(ctx, update.Message)
		}
	}

	bh.Handle(onMessage(b.onStart), th.CommandEqual("start"))
	bh.Handle(onMessage(b.onHelp), th.CommandEqual("help"))
	bh.Handle(onMessage(b.onReferral), th.CommandEqual("referal"))
	bh.Handle(onMessage(b.onClear), th.CommandEqual("clear"))
	bh.Handle(onMessage(b.onStats), th.CommandEqual("stats"))
	bh.Handle(onMessage(b.onResetLimits), th.CommandEqual("reset_limits"))
	bh.Handle(onMessage(b.onProfile), th.TextEqual(btnProfile))
	bh.Handle(onMessage(b.onReferral), th.TextEqual(btnReferral))
	for label := range modeButtons {
		bh.Handle(onMessage(b.onModeButton), th.TextEqual(label))
	}
	bh.Handle(onMessage(b.onPhoto), hasPhoto)
	bh.Handle(onMessage(b.onVoice), hasVoice)
	bh.Handle(onMessage(b.onText), th.AnyMessageWithText())

	bh.Handle(func(ctx *th.Context, update telego.Update) error {
		return b.onCheckSubscription(ctx, update.CallbackQuery)
	}, th.CallbackDataEqual(callbackCheckSubscription))
}

func hasPhoto(_ context.Context, update telego.Update) bool {
	return update.Message != nil && len(update.Message.Photo) > 0
}

func hasVoice(_ context.Context, update telego.Update) bool {
	return update.Message != nil && update.Message.Voice != nil
}

func (b *Bot) onStart(ctx context.Context, msg *telego.Message) error {
	if !b.requireSubscription(ctx, msg) {
		return nil
	}
	id, meta := sender(msg)

	res, err := b.svc.Onboarding.OnFirstContact(ctx, id, meta, startParam(msg.Text))
	if err != nil {
		return b.fail(ctx, msg, "first contact", err)
	}
	b.notifyReferrer(ctx, meta, res)

	if _, err := b.svc.Sessions.Start(ctx, id); err != nil {
		b.logger.Warn("session start failed", zap.Int64("user_id", id), zap.Error(err))
	}
	return b.sendHTML(ctx, msg.Chat.ID, welcomeText(meta.DisplayName), mainKeyboard())
}

func (b *Bot) onHelp(ctx context.Context, msg *telego.Message) error {
	if !b.requireSubscription(ctx, msg) {
		return nil
	}
	return b.sendHTML(ctx, msg.Chat.ID, helpText(b.cfg.ReferralsForPremium), nil)
}

// onClear drops the session so the next message starts a fresh chat.
func (b *Bot) onClear(ctx context.Context, msg *telego.Message) error {
	if !b.requireSubscription(ctx, msg) {
		return nil
	}
	id, _ := sender(msg)
	if err := b.svc.Sessions.End(ctx, id); err != nil {
		b.logger.Error("end session failed", zap.Int64("user_id", id), zap.Error(err))
		return b.sendPlain(ctx, msg.Chat.ID, msgError)
	}
	return b.sendHTML(ctx, msg.Chat.ID, msgCleared, mainKeyboard())
}

func (b *Bot) onReferral(ctx context.Context, msg *telego.Message) error {
	if !b.requireSubscription(ctx, msg) {
		return nil
	}
	id, meta := sender(msg)
	p, err := b.svc.Profiles.Profile(ctx, id, meta)
	if err != nil {
		return b.fail(ctx, msg, "referral info", err)
	}
	return b.sendHTML(ctx, msg.Chat.ID, referralText(p, b.referralLink(id), b.cfg.ReferralsForPremium), nil)
}

func (b *Bot) onProfile(ctx context.Context, msg *telego.Message) error {
	if !b.requireSubscription(ctx, msg) {
		return nil
	}
	id, meta := sender(msg)
	p, err := b.svc.Profiles.Profile(ctx, id, meta)
	if err != nil {
		return b.fail(ctx, msg, "profile", err)
	}
	return b.sendHTML(ctx, msg.Chat.ID, profileText(p, b.cfg.ReferralsForPremium, b.cfg.Location), nil)
}

func (b *Bot) onStats(ctx context.Context, msg *telego.Message) error {
	id, _ := sender(msg)
	if !b.svc.Admin.IsAdmin(id) {
		return b.sendHTML(ctx, msg.Chat.ID, msgAdminOnly, nil)
	}
	n, err := b.svc.Admin.UserCount(ctx)
	if err != nil {
		return b.fail(ctx, msg, "stats", err)
	}
	return b.sendHTML(ctx, msg.Chat.ID, statsText(n), nil)
}

func (b *Bot) onResetLimits(ctx context.Context, msg *telego.Message) error {
	id, _ := sender(msg)
	if !b.svc.Admin.IsAdmin(id) {
		return b.sendHTML(ctx, msg.Chat.ID, msgAdminOnly, nil)
	}
	n, err := b.svc.Admin.ResetAll(ctx)
	if err != nil {
		return b.fail(ctx, msg, "reset limits", err)
	}
	b.logger.Info("limits reset by admin", zap.Int64("admin_id", id), zap.Int("reset_users", n))
	return b.sendHTML(ctx, msg.Chat.ID, resetText(n), nil)
}

func (b *Bot) onModeButton(ctx context.Context, msg *telego.Message) error {
	if !b.requireSubscription(ctx, msg) {
		return nil
	}
	mode, ok := modeButtons[msg.Text]
	if !ok {
		return nil
	}
	id, _ := sender(msg)
	if _, err := b.svc.Sessions.SwitchMode(ctx, id, mode); err != nil {
		return b.fail(ctx, msg, "switch mode", err)
	}
	return b.sendHTML(ctx, msg.Chat.ID, modeAcks[mode], nil)
}

func (b *Bot) onText(ctx context.Context, msg *telego.Message) error {
	if strings.HasPrefix(msg.Text, "/") {
		return nil
	}
	if !b.requireSubscription(ctx, msg) {
		return nil
	}
	id, meta := sender(msg)

	ans, err := b.svc.Tutor.Ask(ctx, id, meta, msg.Text)
	if err != nil {
		return b.replyError(ctx, msg, err, msgError)
	}
	return b.sendPlain(ctx, msg.Chat.ID, ans.Text)
}

func (b *Bot) onPhoto(ctx context.Context, msg *telego.Message) error {
	if !b.requireSubscription(ctx, msg) {
		return nil
	}
	id, meta := sender(msg)

	largest := msg.Photo[len(msg.Photo)-1]
	file, err := b.api.GetFile(ctx, &telego.GetFileParams{FileID: largest.FileID})
	if err != nil {
		b.logger.Error("get file failed", zap.Int64("user_id", id), zap.Error(err))
		return b.sendPlain(ctx, msg.Chat.ID, msgPhotoError)
	}

	ans, err := b.svc.Tutor.DescribeImage(ctx, id, meta, b.api.FileDownloadURL(file.FilePath))
	if err != nil {
		return b.replyError(ctx, msg, err, msgPhotoError)
	}
	return b.sendPlain(ctx, msg.Chat.ID, ans.Text)
}

func (b *Bot) onVoice(ctx context.Context, msg *telego.Message) error {
	if !b.requireSubscription(ctx, msg) {
		return nil
	}
	id, meta := sender(msg)

	err := b.svc.Tutor.Voice(ctx, id, meta)
	switch {
	case errors.Is(err, tutoruc.ErrNotSpeakMode):
		return b.sendPlain(ctx, msg.Chat.ID, msgNeedSpeak)
	case err != nil:
		return b.replyError(ctx, msg, err, msgError)
	}
	return b.sendPlain(ctx, msg.Chat.ID, msgVoiceAck)
}

func (b *Bot) onCheckSubscription(ctx context.Context, q *telego.CallbackQuery) error {
	if !b.isSubscribed(ctx, q.From.ID) {
		return b.api.AnswerCallbackQuery(ctx, tu.CallbackQuery(q.ID).WithText(msgNotMember).WithShowAlert())
	}
	if err := b.api.AnswerCallbackQuery(ctx, tu.CallbackQuery(q.ID).WithText("✅ A'zolik tasdiqlandi!")); err != nil {
		b.logger.Debug("answer callback failed", zap.Error(err))
	}
	return b.sendHTML(ctx, q.From.ID, msgSubscribed, nil)
}

// requireSubscription gates msg on channel membership and prompts the user when missing.
func (b *Bot) requireSubscription(ctx context.Context, msg *telego.Message) bool {
	id, _ := sender(msg)
	if b.isSubscribed(ctx, id) {
		return true
	}
	if err := b.sendHTML(ctx, msg.Chat.ID, msgSubscribe, subscribeKeyboard(b.cfg.ChannelInviteLink)); err != nil {
		b.logger.Warn("send subscribe prompt failed", zap.Int64("user_id", id), zap.Error(err))
	}
	return false
}

func (b *Bot) isSubscribed(ctx context.Context, userID int64) bool {
	if b.cfg.ChannelID == 0 {
		return true
	}
	member, err := b.api.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: tu.ID(b.cfg.ChannelID),
		UserID: userID,
	})
	if err != nil {
		b.logger.Error("check subscription failed", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	switch member.MemberStatus() {
	case telego.MemberStatusMember, telego.MemberStatusAdministrator, telego.MemberStatusCreator:
		return true
	default:
		return false
	}
}

func (b *Bot) notifyReferrer(ctx context.Context, meta user.Meta, res referraluc.FirstContactResult) {
	var text string
	switch res.Referral.Kind {
	case domref.KindCounted:
		text = newReferralText(meta.DisplayName, res.Referral.Count, b.cfg.ReferralsForPremium)
	case domref.KindPremiumEarned:
		text = newReferralText(meta.DisplayName, res.Referral.Count, b.cfg.ReferralsForPremium)
		if err := b.sendHTML(ctx, res.Referral.ReferrerID, text, nil); err != nil {
			b.logger.Debug("notify referrer failed", zap.Int64("referrer_id", res.Referral.ReferrerID), zap.Error(err))
		}
		text = premiumEarnedText(res.Referral.PremiumUntil, b.cfg.ReferralsForPremium, b.cfg.Location)
	default:
		return
	}
	if err := b.sendHTML(ctx, res.Referral.ReferrerID, text, nil); err != nil {
		b.logger.Debug("notify referrer failed", zap.Int64("referrer_id", res.Referral.ReferrerID), zap.Error(err))
	}
}

// replyError tells the user why a request was refused. Limit errors get the referral pitch.
func (b *Bot) replyError(ctx context.Context, msg *telego.Message, err error, fallback string) error {
	id, _ := sender(msg)
	if errors.Is(err, domain.ErrLimitReached) {
		return b.sendHTML(ctx, msg.Chat.ID,
			limitText(b.referralLink(id), b.cfg.FreeDailyLimit, b.cfg.ReferralsForPremium), nil)
	}
	b.logger.Error("request failed", zap.Int64("user_id", id), zap.Error(err))
	return b.sendPlain(ctx, msg.Chat.ID, fallback)
}

func (b *Bot) fail(ctx context.Context, msg *telego.Message, op string, err error) error {
	id, _ := sender(msg)
	b.logger.Error(op+" failed", zap.Int64("user_id", id), zap.Error(err))
	return b.sendPlain(ctx, msg.Chat.ID, msgError)
}

func (b *Bot) referralLink(id int64) string {
	return domref.Link(b.cfg.BotUsername, id)
}

func (b *Bot) sendHTML(ctx context.Context, chatID int64, text string, markup telego.ReplyMarkup) error {
	params := tu.Message(tu.ID(chatID), text).WithParseMode(telego.ModeHTML)
	if markup != nil {
		params = params.WithReplyMarkup(markup)
	}
	_, err := b.api.SendMessage(ctx, params)
	return err
}

func (b *Bot) sendPlain(ctx context.Context, chatID int64, text string) error {
	_, err := b.api.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	return err
}

func sender(msg *telego.Message) (int64, user.Meta) {
	if msg.From == nil {
		return msg.Chat.ID, user.Meta{}
	}
	return msg.From.ID, user.Meta{DisplayName: msg.From.FirstName, Handle: msg.From.Username}
}

// startParam returns the deep-link payload of a /start command.
func startParam(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}
