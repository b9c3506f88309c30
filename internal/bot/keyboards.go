package bot

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// buttons maps reply keyboard labels to commands.
var buttons = map[string]string{
	"Product": "product",
	"Archive": "sap",
	"Import":  "import",
	"Backup":  "backup",
}

func operatorReplyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]tgbotapi.KeyboardButton{
			{tgbotapi.NewKeyboardButton("Product"), tgbotapi.NewKeyboardButton("Archive")},
			{tgbotapi.NewKeyboardButton("Import"), tgbotapi.NewKeyboardButton("Backup")},
		},
	}
}
