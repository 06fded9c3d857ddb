package telegram

import (
	"context"

	"github.com/mymmrac/telego"

	domsession "github.com/kailas-cloud/tutorbot/internal/domain/session"
	"github.com/kailas-cloud/tutorbot/internal/domain/user"
	quotauc "github.com/kailas-cloud/tutorbot/internal/usecase/quota"
	referraluc "github.com/kailas-cloud/tutorbot/internal/usecase/referral"
	tutoruc "github.com/kailas-cloud/tutorbot/internal/usecase/tutor"
)

// api is the subset of the Bot API the handlers call. *telego.Bot implements it.
type api interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
	GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error)
	GetFile(ctx context.Context, params *telego.GetFileParams) (*telego.File, error)
	FileDownloadURL(filepath string) string
}

// Onboarder registers users on /start.
type Onboarder interface {
	OnFirstContact(ctx context.Context, id int64, meta user.Meta, param string) (referraluc.FirstContactResult, error)
}

// Profiles reads the quota view of a user.
type Profiles interface {
	Profile(ctx context.Context, id int64, meta user.Meta) (quotauc.Profile, error)
}

// Tutor answers learner messages.
type Tutor interface {
	Ask(ctx context.Context, id int64, meta user.Meta, text string) (tutoruc.Answer, error)
	DescribeImage(ctx context.Context, id int64, meta user.Meta, imageURL string) (tutoruc.Answer, error)
	Voice(ctx context.Context, id int64, meta user.Meta) error
}

// Sessions switches tutor modes.
type Sessions interface {
	Start(ctx context.Context, userID int64) (domsession.Session, error)
	SwitchMode(ctx context.Context, userID int64, mode domsession.Mode) (domsession.Session, error)
	End(ctx context.Context, userID int64) error
}

// Admin runs operator commands.
type Admin interface {
	IsAdmin(id int64) bool
	ResetAll(ctx context.Context) (int, error)
	UserCount(ctx context.Context) (int, error)
}
