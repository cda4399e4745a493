package discord

import (
	"fmt"
	"strings"

	discordpkg "github.com/foxseedlab/playhost/internal/discord"
)

const (
	textChannelName = "chat"

	buttonLabelJoin      = "参加"
	buttonLabelLeave     = "退出"
	buttonLabelPing      = "募集を通知"
	buttonLabelStop      = "終了"
	buttonLabelForceStop = "強制終了"
	buttonLabelRecommend = "おすすめ"
	buttonLabelKick      = "キック"
	buttonLabelBan       = "BAN"

	messageSessionHeader     = ":video_game: **%s** (%s) ホスト: <@%s>"
	messageSessionPlayers    = "参加者: %d / %s"
	messageSessionNoPlayers  = "参加者: なし"
	messageSessionServerInfo = "サーバー情報: %s"
	messageSessionID         = "-# セッション ID: %s"
	messageAnnouncement      = ":loudspeaker: **<@%s> が %s のセッションを開始しました！**"
	messageRecruit           = ":loudspeaker: @everyone **<@%s> の %s セッションで参加者を募集しています！**"
	messagePlayerJoined      = ":inbox_tray: **%s** が参加しました。"
	messagePlayerLeft        = ":outbox_tray: **%s** が退出しました。"
	messageEnding            = ":checkered_flag: <@&%s> **%s がセッションを終了しました。** このチャンネルはまもなく削除されます。"
	messageEndingForced      = ":checkered_flag: <@&%s> **%s がセッションを強制終了しました。** このチャンネルはまもなく削除されます。"
	unlimitedPlayers         = "∞"
)

func sessionRoleName(view discordpkg.SessionView) string {
	return fmt.Sprintf("%s-%s", view.Blueprint.Name, view.ID)
}

func categoryName(view discordpkg.SessionView) string {
	return fmt.Sprintf("%s [%s] %s", view.Blueprint.Name, view.Blueprint.Type, view.ID)
}

func controlMessage(view discordpkg.SessionView) string {
	lines := []string{fmt.Sprintf(messageSessionHeader, view.Blueprint.Name, view.Blueprint.Type, view.HostID)}
	if len(view.PlayerIDs) == 0 {
		lines = append(lines, messageSessionNoPlayers)
	} else {
		limit := unlimitedPlayers
		if view.Blueprint.MaxPlayers > 0 {
			limit = fmt.Sprint(view.Blueprint.MaxPlayers)
		}
		mentions := make([]string, 0, len(view.PlayerIDs))
		for _, id := range view.PlayerIDs {
			mentions = append(mentions, "<@"+id+">")
		}
		lines = append(lines, fmt.Sprintf(messageSessionPlayers, len(view.PlayerIDs), limit)+" "+strings.Join(mentions, " "))
	}
	if view.Blueprint.ServerInfo != "" {
		lines = append(lines, fmt.Sprintf(messageSessionServerInfo, view.Blueprint.ServerInfo))
	}
	lines = append(lines, fmt.Sprintf(messageSessionID, view.ID))
	return strings.Join(lines, "\n")
}

func announcementMessage(view discordpkg.SessionView) string {
	return fmt.Sprintf(messageAnnouncement, view.HostID, view.Blueprint.Name) + "\n" + controlMessage(view)
}

func recruitMessage(view discordpkg.SessionView) string {
	return fmt.Sprintf(messageRecruit, view.HostID, view.Blueprint.Name) + "\n" + controlMessage(view)
}

func playerJoinedMessage(m discordpkg.Member) string {
	return fmt.Sprintf(messagePlayerJoined, displayName(m))
}

func playerLeftMessage(m discordpkg.Member) string {
	return fmt.Sprintf(messagePlayerLeft, displayName(m))
}

func endingMessage(sessionRoleID string, by discordpkg.Member, forced bool) string {
	format := messageEnding
	if forced {
		format = messageEndingForced
	}
	return fmt.Sprintf(format, sessionRoleID, displayName(by))
}

func displayName(m discordpkg.Member) string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.ID
}
