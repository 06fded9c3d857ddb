package telegram

import (
	"fmt"
	"html"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	domsession "github.com/kailas-cloud/tutorbot/internal/domain/session"
	quotauc "github.com/kailas-cloud/tutorbot/internal/usecase/quota"
)

// Reply keyboard labels.
const (
	btnChat      = "🧠 Chat AI"
	btnTranslate = "📘 Tarjima"
	btnSpeak     = "🗣 Speak English"
	btnProfile   = "👤 Profil"
	btnReferral  = "🔗 Referal"
	btnHelp      = "/help"

	callbackCheckSubscription = "check_subscription"
)

const dateLayout = "02.01.2006"

var modeButtons = map[string]domsession.Mode{
	btnChat:      domsession.ModeChat,
	btnTranslate: domsession.ModeTranslate,
	btnSpeak:     domsession.ModeSpeak,
}

const (
	msgSubscribe = "⚠️ <b>Botdan foydalanish uchun kanalimizga a'zo bo'ling!</b>\n\n" +
		"Kanalga a'zo bo'lgandan keyin \"✅ A'zo bo'ldim\" tugmasini bosing."
	msgSubscribed = "✅ <b>Rahmat!</b> Endi botdan foydalanishingiz mumkin.\n\n/start buyrug'ini bosing."
	msgNotMember  = "❌ Siz hali kanalga a'zo bo'lmadingiz!"
	msgAdminOnly  = "⛔ Bu buyruq faqat admin uchun."
	msgCleared    = "🧹 Suhbat tarixi tozalandi. Rejim: <b>Chat AI</b>."
	msgError      = "❌ Xatolik yuz berdi. Iltimos, qaytadan urinib ko'ring."
	msgPhotoError = "❌ Rasmni qayta ishlashda xatolik yuz berdi."
	msgNeedSpeak  = "🗣 Avval \"Speak English\" rejimini tanlang!"
	msgVoiceAck   = "🎤 Ovozingiz qabul qilindi!\n\n" +
		"💡 Hozircha ovoz xabarlarni to'liq qo'llab-quvvatlash ustida ishlamoqdamiz.\n" +
		"Matn yozib yuboring yoki \"Chat AI\" rejimidan foydalaning!"
)

var modeAcks = map[domsession.Mode]string{
	domsession.ModeChat:      "🧠 <b>Chat AI</b> rejimi yoqildi.\n\nSavol bering!",
	domsession.ModeTranslate: "📘 <b>Tarjima</b> rejimi yoqildi.\n\nMatn yuboring!",
	domsession.ModeSpeak:     "🗣 <b>Speak English</b> rejimi yoqildi.\n\nOvoz xabar yuboring, men tekshiraman!",
}

func mainKeyboard() *telego.ReplyKeyboardMarkup {
	return tu.Keyboard(
		tu.KeyboardRow(tu.KeyboardButton(btnChat), tu.KeyboardButton(btnTranslate)),
		tu.KeyboardRow(tu.KeyboardButton(btnSpeak)),
		tu.KeyboardRow(tu.KeyboardButton(btnProfile), tu.KeyboardButton(btnReferral)),
		tu.KeyboardRow(tu.KeyboardButton(btnHelp)),
	).WithResizeKeyboard()
}

func subscribeKeyboard(inviteLink string) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("📢 Kanalga a'zo bo'lish").WithURL(inviteLink)),
		tu.InlineKeyboardRow(tu.InlineKeyboardButton("✅ A'zo bo'ldim").WithCallbackData(callbackCheckSubscription)),
	)
}

func welcomeText(name string) string {
	return fmt.Sprintf("👋 <b>Salom, %s!</b>\n\n"+
		"🤖 <b>AI English Learning Bot</b>\n\n"+
		"🧠 Chat AI — savol-javob\n"+
		"📘 Tarjima — matn tarjimasi\n"+
		"🗣 Speak English — gapirib o'rganish\n"+
		"👤 Profil — limit va premium\n"+
		"🔗 Referal — do'stlarni taklif qiling\n\n"+
		"👇 <b>Rejimni tanlang:</b>", html.EscapeString(name))
}

func helpText(every int) string {
	return fmt.Sprintf("ℹ️ <b>YORDAM</b>\n\n"+
		"🧠 <b>Chat AI</b> — ingliz tili bo'yicha savol-javob\n"+
		"📘 <b>Tarjima</b> — matnlarni tarjima qilish\n"+
		"🗣 <b>Speak English</b> — ovoz yuborib mashq qilish\n\n"+
		"📸 <b>Rasm</b> yuborsangiz — tarjima qilinadi\n"+
		"🎤 <b>Ovoz</b> yuborsangiz — tekshiriladi\n\n"+
		"━━━━━━━━━━━━━━━━\n"+
		"💎 <b>PREMIUM OLISH:</b>\n"+
		"%d ta do'stingizni taklif qiling = 1 oy cheksiz!\n"+
		"🔗 /referal — referal havolangiz\n"+
		"🧹 /clear — suhbatni yangidan boshlash", every)
}

func statusText(p quotauc.Profile) string {
	if p.Premium {
		return "💎 PREMIUM"
	}
	return "🆓 FREE"
}

func referralText(p quotauc.Profile, link string, every int) string {
	return fmt.Sprintf("🔗 <b>REFERAL DASTURI</b>\n\n"+
		"📊 Sizning referallaringiz: <b>%d</b>\n"+
		"🎯 Premium uchun qoldi: <b>%d</b> ta\n"+
		"📌 Status: %s\n\n"+
		"━━━━━━━━━━━━━━━━\n"+
		"📨 <b>Sizning havolangiz:</b>\n"+
		"<code>%s</code>\n\n"+
		"☝️ Bu havolani do'stlaringizga yuboring!\n"+
		"%d ta odam qo'shilsa = <b>1 OY CHEKSIZ</b> 🎁",
		p.ReferralsCount, p.ReferralsToNextPremium, statusText(p), link, every)
}

func profileText(p quotauc.Profile, every int, loc *time.Location) string {
	status := "🆓 FREE"
	limit := fmt.Sprintf("📊 <b>%d/%d</b>", p.AllowanceRemaining, p.DailyLimit)
	if p.Premium {
		status = fmt.Sprintf("💎 <b>PREMIUM</b> (%s gacha)", p.PremiumExpiresAt.In(loc).Format(dateLayout))
		limit = "♾ <b>CHEKSIZ</b>"
	}
	return fmt.Sprintf("👤 <b>SIZNING PROFILINGIZ</b>\n\n"+
		"🆔 ID: <code>%d</code>\n"+
		"📌 Status: %s\n"+
		"📱 Kunlik limit: %s\n"+
		"🔗 Referallar: <b>%d</b>\n\n"+
		"━━━━━━━━━━━━━━━━\n"+
		"💡 <b>PREMIUM OLISH:</b>\n"+
		"%d ta do'stni taklif qiling = 1 oy cheksiz!",
		p.UserID, status, limit, p.ReferralsCount, every)
}

func limitText(link string, dailyLimit, every int) string {
	return fmt.Sprintf("⚠️ <b>Limitingiz tugadi!</b>\n\n"+
		"Kunlik limit: <b>0/%d</b>\n\n"+
		"━━━━━━━━━━━━━━━━\n"+
		"🎁 <b>1 oy cheksiz ishlatish uchun</b>\n"+
		"%d ta do'stingizni taklif qiling!\n\n"+
		"📨 <b>Sizning havolangiz:</b>\n"+
		"<code>%s</code>\n\n"+
		"⏰ Yoki ertaga qaytib keling!", dailyLimit, every, link)
}

func newReferralText(name string, count, every int) string {
	if name == "" {
		name = "Foydalanuvchi"
	}
	return fmt.Sprintf("🎉 <b>Yangi referal!</b>\n\n"+
		"👤 %s sizning havolangiz orqali qo'shildi!\n"+
		"📊 Jami referallar: <b>%d/%d</b>", html.EscapeString(name), count, every)
}

func premiumEarnedText(until time.Time, every int, loc *time.Location) string {
	return fmt.Sprintf("🏆 <b>TABRIKLAYMIZ!</b>\n\n"+
		"Siz %d ta referal to'pladingiz va\n"+
		"🎁 <b>1 OY CHEKSIZ LIMIT</b> oldingiz!\n\n"+
		"📅 Premium muddat: <b>%s</b> gacha\n\n"+
		"Yana %d ta referal = yana 1 oy! 🚀", every, until.In(loc).Format(dateLayout), every)
}

func statsText(total int) string {
	return fmt.Sprintf("📊 <b>BOT STATISTIKASI</b>\n\n👥 Jami foydalanuvchilar: <b>%d</b>", total)
}

func resetText(n int) string {
	return fmt.Sprintf("✅ Barcha foydalanuvchilar uchun kunlik limitlar qayta tiklandi (%d).", n)
}
