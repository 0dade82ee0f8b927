package domain

const (
	UsersCollection    = "users"
	CallsCollection    = "calls"
	ChatsCollection    = "chats"
	DevicesCollection  = "devices"
	MessagesCollection = "messages"

	GameStatePath = "gameState/global"
	SettingsPath  = "settings/global"
)

func UserPath(id UserID) string {
	return UsersCollection + "/" + string(id)
}

func CallPath(id CallID) string {
	return CallsCollection + "/" + string(id)
}

func CandidatesPath(id CallID, side CallSide) string {
	return CallPath(id) + "/" + side.CandidatesCollection()
}

func ChatPath(chatID string) string {
	return ChatsCollection + "/" + chatID
}

func MessagesPath(chatID string) string {
	return ChatPath(chatID) + "/" + MessagesCollection
}

func DevicePath(id string) string {
	return DevicesCollection + "/" + id
}
