package bot

import (
	"fmt"
	"strconv"
	"strings"

	"pawbot/internal/storage"
)

const (
	textAskWeight       = "Please enter your dog's weight (e.g., 15.2 kg or 33.5 lbs):"
	textInvalidWeight   = "That doesn't look like a valid weight. Please enter a number (e.g., 15.2):"
	textAskDate         = "Got it! Now, please enter the date for this weight (YYYY-MM-DD). Enter 'today' for today's date."
	textInvalidDate     = "Invalid date format. Please use YYYY-MM-DD or 'today'. Try again:"
	textWeightLost      = "Something went wrong. Please start again with /addweight."
	textNoWeights       = "You haven't recorded any weights yet. Use /addweight to add one!"
	textAskTime         = "What time should I send the reminder daily? (e.g., 08:30 for 8:30 AM, 14:00 for 2 PM)"
	textInvalidTime     = "Invalid time format. Please use HH:MM (e.g., 09:00, 15:30). Try again:"
	textAskMessage      = "Great! Now, what's the reminder message? (e.g., 'Feed the dog', 'Give medication')"
	textEmptyMessage    = "The reminder message can't be empty. What's the reminder message?"
	textReminderLost    = "Something went wrong. Please start again with /addreminder."
	textScheduleFailed  = "Failed to schedule reminder. Please try again later."
	textNoReminders     = "You have no active reminders. Use /addreminder to set one!"
	textDeleteUsage     = "Please specify the reminder number to delete. E.g., /deletereminder 1"
	textDeleteNotNumber = "Invalid input. Please provide a number (e.g., /deletereminder 1)."
	textDeleteRange     = "Invalid reminder number. Please use a number from the /listreminders command."
	textDeleteFailed    = "An error occurred while trying to delete the reminder."
	textCanceled        = "Operation canceled. You can start a new command anytime."
	textUnknown         = "Unknown command. Use /help to see what I can do."
	textBusy            = "I'm a bit busy right now, please try again in a moment."
	textFailed          = "Something went wrong. Please try again."

	textNotSaved = "\n\n⚠️ Your change is active but could not be saved yet. I'll keep retrying."
)

func welcomeText(name string) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hi %s! I'm your dog care bot. ", name) +
		"I can help you track your dog's weight and send daily reminders.\n\n" +
		"Here are the commands you can use:\n" +
		"/addweight - Add a new weight entry\n" +
		"/viewweights - View all recorded weights\n" +
		"/addreminder - Set a new daily reminder\n" +
		"/listreminders - See your current reminders\n" +
		"/deletereminder <index> - Delete a specific reminder (e.g., /deletereminder 1)\n" +
		"/cancel - Cancel the current operation"
}

// formatWeight prints integral weights with one decimal, as "15.0".
func formatWeight(w float64) string {
	s := strconv.FormatFloat(w, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func weightRecordedText(e storage.WeightEntry) string {
	return fmt.Sprintf("Successfully recorded your dog's weight: %s on %s.", formatWeight(e.Weight), e.Date)
}

func weightsText(list []storage.WeightEntry) string {
	var b strings.Builder
	b.WriteString("🐾 Your Dog's Weight History:\n")
	for _, e := range list {
		fmt.Fprintf(&b, "- Date: %s, Weight: %s kg/lbs\n", e.Date, formatWeight(e.Weight))
	}
	return b.String()
}

func reminderSetText(e storage.ReminderEntry) string {
	return fmt.Sprintf("Daily reminder set for %s with message: '%s' 🔔", e.Time, e.Message)
}

func reminderDuplicateText(at, msg string) string {
	return fmt.Sprintf("You already have a daily reminder at %s with message: '%s'.", at, strings.TrimSpace(msg))
}

func remindersText(list []storage.ReminderEntry) string {
	var b strings.Builder
	b.WriteString("⏰ Your Active Reminders:\n")
	for i, r := range list {
		fmt.Fprintf(&b, "%d. At %s: %s\n", i+1, r.Time, r.Message)
	}
	b.WriteString("\nTo delete a reminder, use /deletereminder <number> (e.g., /deletereminder 1)")
	return b.String()
}

func reminderDeletedText(e storage.ReminderEntry) string {
	return fmt.Sprintf("Reminder '%s' at %s deleted successfully!", e.Message, e.Time)
}
