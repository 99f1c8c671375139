package flow

import (
	"fmt"
	"strings"

	"github.com/bcbklhi/escrow-express/internal/models"
)

// User-facing copy. Kept in one place so the flows stay readable.
const (
	// DealTrigger is the literal text that starts a new intake.
	DealTrigger = "💰 INR Deal"

	welcomeMessage = "👋 Welcome to *Escrow Express*\nSend " + DealTrigger + " to begin your deal."

	captchaPromptFmt   = "🔐 Captcha Verification: Type *%s* to continue."
	captchaVerifiedMsg = "✅ Captcha verified!"
	captchaFailedMsg   = "❌ Incorrect captcha. Try again."

	invalidDealMsg    = "❌ Invalid deal."
	alreadyAgreedMsg  = "❌ Already agreed."
	alreadyClaimedMsg = "❌ Already claimed."

	broadcastPromptMsg = "📢 Send your broadcast message:"
	broadcastSentMsg   = "✅ Sent."
)

// WelcomeMessage returns the /start reply pointing at the deal trigger.
func WelcomeMessage() string {
	return welcomeMessage
}

// intakePrompts are shown in field order; prompt i requests IntakeFields[i].
var intakePrompts = []string{
	"📝 Deal of:",
	"📝 Total Amount:",
	"⏰ Time to complete deal:",
	"💸 When releasing payment:",
	"🏦 Payment from which bank (compulsory):",
	"👤 Seller Username:",
	"👥 Buyer Username:",
}

// dealAnnouncement formats the group announcement block for a new deal.
func dealAnnouncement(deal models.Deal) string {
	return fmt.Sprintf("📄 *New Deal Created!*\n\n"+
		"🆔 Deal ID: %s\n"+
		"📌 Deal: %s\n"+
		"💰 Amount: ₹%s\n"+
		"⏰ Time: %s\n"+
		"💸 Release: %s\n"+
		"🏦 Bank: %s\n"+
		"👤 Seller: @%s\n"+
		"👥 Buyer: @%s",
		deal.ID,
		deal.Data[models.FieldDealOf],
		deal.Data[models.FieldAmount],
		deal.Data[models.FieldTime],
		deal.Data[models.FieldReleaseWhen],
		deal.Data[models.FieldBank],
		deal.Data[models.FieldSeller],
		deal.Data[models.FieldBuyer])
}

// agreeButtons builds the dual-accept control row. Confirmed roles get a
// check-mark suffix; the decoration is label-only, the tokens never change.
func agreeButtons(deal models.Deal) [][]models.Button {
	buyerLabel := "✅ Buyer Agree"
	if _, ok := deal.Agreed[models.RoleBuyer]; ok {
		buyerLabel += " ✅"
	}
	sellerLabel := "✅ Seller Agree"
	if _, ok := deal.Agreed[models.RoleSeller]; ok {
		sellerLabel += " ✅"
	}
	return [][]models.Button{{
		{Label: buyerLabel, Data: models.AgreeToken(models.RoleBuyer, deal.ID)},
		{Label: sellerLabel, Data: models.AgreeToken(models.RoleSeller, deal.ID)},
	}}
}

// claimButtons builds the arbiter claim control for a confirmed deal.
func claimButtons(dealID string) [][]models.Button {
	return [][]models.Button{{
		{Label: "🛡️ Claim Deal", Data: models.ClaimToken(dealID)},
	}}
}

// normalizeHandle ensures a user handle carries its leading @.
func normalizeHandle(handle string) string {
	if strings.HasPrefix(handle, "@") {
		return handle
	}
	return "@" + handle
}

// paymentInstructions is the buyer DM sent after a claim, embedding the deal
// ID as the required reference code.
func paymentInstructions(dealID string) string {
	return fmt.Sprintf("📤 Please send payment to UPI ID and upload screenshot.\nUse code: *%s* in caption.", dealID)
}
