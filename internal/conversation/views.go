package conversation

import (
	"strconv"

	"github.com/m3rciful/sitebot/core/telegram/format"
	"github.com/m3rciful/sitebot/internal/accesslink"
)

// Reply keyboard labels the user answers with.
const (
	LabelLogin      = "➡️ Log in to the website"
	LabelContactUs  = "📧 Contact us"
	LabelBackToMenu = "Back to main menu"
	LabelReturn     = "Return"
	LabelSharePhone = "Send phone number"
)

const (
	labelMainMenu  = "Main menu"
	labelLoginLink = "Login link"
	labelRegister  = "Registration link"
	labelGuest     = "Guest link"
	labelApprove   = "Send"
	labelDecline   = "Cancel"

	placeholderLinks = "Creating link..."
	placeholderTheme = "Loading themes..."

	themesPerRow = 2
)

func menuKeyboard() *Keyboard {
	return &Keyboard{Reply: [][]string{{LabelLogin}, {LabelContactUs}}}
}

func greetingView() Message {
	return Message{Text: "Hello!\nChoose an option.", Keyboard: menuKeyboard()}
}

func appealSentView() Message {
	return Message{Text: "Your appeal has been sent!\nChoose an option.", Keyboard: menuKeyboard()}
}

func helpView() Message {
	return Message{
		Text: "👀 Sorry, I did not understand you.\n\n" +
			"Use the buttons below to talk to me. 👇👇👇\n\n" +
			"<code>(If the buttons are hidden, switch the keyboard with the icon to the right of the input field)</code>",
		HTML:     true,
		Keyboard: menuKeyboard(),
	}
}

func loginPhoneView() Message {
	return Message{
		Text:     "To log in or register, please send your phone number.",
		Keyboard: &Keyboard{Contact: LabelSharePhone},
	}
}

func appealPhoneView() Message {
	return Message{
		Text:     "To send an appeal, please send your phone number.",
		Keyboard: &Keyboard{Contact: LabelSharePhone},
	}
}

func placeholderView(text string) Message {
	return Message{Text: text, Keyboard: &Keyboard{Remove: true}}
}

func themesView(themes []string) Message {
	var rows [][]Button
	for i := 0; i < len(themes); i += themesPerRow {
		var row []Button
		for j := i; j < min(i+themesPerRow, len(themes)); j++ {
			row = append(row, Button{Text: themes[j], Key: CallbackTheme, Payload: strconv.Itoa(j)})
		}
		rows = append(rows, row)
	}
	return Message{
		Text:     "Carefully choose the topic of your appeal:",
		HTML:     true,
		Keyboard: &Keyboard{Inline: rows},
	}
}

func describeView(theme string) Message {
	return Message{
		Text: format.Lines(
			"Appeal topic: "+format.Italic(theme),
			"Enter the text of your appeal:",
		),
		HTML: true,
	}
}

func previewView(theme, description string) Message {
	return Message{
		Text: "<b>Theme:</b> " + format.Escape(theme) + "\n" +
			"<b>Text:</b> " + format.Escape(description) + "\n\n" +
			format.Italic("Is everything correct? Send it?"),
		HTML:     true,
		Keyboard: &Keyboard{Inline: [][]Button{{
			{Text: labelApprove, Key: CallbackApprove},
			{Text: labelDecline, Key: CallbackDecline},
		}}},
	}
}

func linksView(res accesslink.Result) Message {
	var (
		text string
		rows [][]Button
	)
	switch r := res.(type) {
	case accesslink.LoggedIn:
		text = "🔗 Here is your link to log in to the website:\n" + format.Italic("(valid for 5 minutes)")
		rows = [][]Button{{{Text: labelLoginLink, URL: r.LoginURL}}}
	case accesslink.NeedsRegistration:
		text = "📱 No registration was found for your phone number.\n\n" +
			"Below is the link to " + format.Bold("register") + "\n" +
			format.Italic("(valid for 5 minutes)")
		rows = [][]Button{
			{{Text: labelRegister, URL: r.RegisterURL}},
			{{Text: labelGuest, URL: r.GuestURL}},
		}
	}
	rows = append(rows, []Button{{Text: labelMainMenu, Key: CallbackBackToMenu}})
	return Message{Text: text, HTML: true, Keyboard: &Keyboard{Inline: rows}}
}
