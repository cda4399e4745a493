package session

import (
	"fmt"
	"time"
)

const (
	messageEphemeralUnknownSession   = ":warning: **このセッションは既に終了しているか、存在しません。**"
	messageEphemeralNotRunning       = ":warning: **このセッションは現在募集を締め切っています。**"
	messageEphemeralSessionFull      = ":warning: **このセッションは満員です。**"
	messageEphemeralAlreadyJoined    = ":warning: **既にこのセッションに参加しています。**"
	messageEphemeralBanned           = ":no_entry: **このセッションから BAN されているため参加できません。**"
	messageEphemeralInOtherSession   = ":warning: **別のセッションに参加中、またはホスト中です。**"
	messageEphemeralJoinFailed       = ":warning: **セッションへの参加に失敗しました。**"
	messageEphemeralNotJoined        = ":warning: **このセッションに参加していません。**"
	messageEphemeralLeaveFailed      = ":warning: **セッションからの退出に失敗しました。**"
	messageEphemeralHostOnly         = ":warning: **この操作はホストのみ実行できます。**"
	messageEphemeralModeratorOnly    = ":warning: **この操作はモデレーターのみ実行できます。**"
	messageEphemeralStopFailed       = ":warning: **セッションの終了に失敗しました。**"
	messageEphemeralTargetNotJoined  = ":warning: **対象のユーザーはこのセッションに参加していません。**"
	messageEphemeralRemoveFailed     = ":warning: **ユーザーの退出処理に失敗しました。**"
	messageEphemeralSelfRecommend    = ":warning: **自分自身をおすすめすることはできません。**"
	messageEphemeralRecommendLocked  = ":warning: **おすすめ機能はまだ解放されていません。**"
	messageEphemeralRecommendFailed  = ":warning: **おすすめに失敗しました。**"
	messageEphemeralPingLocked       = ":warning: **募集の通知はまだ解放されていません。**"
	messageEphemeralPingFailed       = ":warning: **募集の通知に失敗しました。**"
	messageEphemeralJoined           = ":video_game: **セッションに参加しました。**"
	messageEphemeralLeft             = ":wave: **セッションから退出しました。**"
	messageEphemeralStopped          = ":checkered_flag: **セッションを終了します。**"
	messageEphemeralRecommended      = ":star: **おすすめしました。**"
	messageEphemeralPinged           = ":loudspeaker: **募集を通知しました。**"
	messageEphemeralGiveCapReached   = ":warning: **本日のおすすめ回数の上限 (%d 回) に達しました。**"
	messageEphemeralGiveCooldown     = ":warning: **このユーザーには <t:%d:R> までおすすめできません。**"
	messageEphemeralPingCooldown     = ":warning: **次の募集の通知は <t:%d:R> から可能です。**"
	messageEphemeralRemovedFormat    = ":no_entry: <@%s> **を%sしました。**"
	messageEphemeralLeaveReasonKick  = "キック"
	messageEphemeralLeaveReasonBan   = "BAN"
	messageEphemeralRecommendedCount = "-# 本日 %d / %d 回"
	messageEphemeralInvalidOptions   = ":warning: **入力内容が正しくありません。**"
	messageEphemeralStartFailed      = ":warning: **セッションの開始に失敗しました。**"
	messageEphemeralScoreFailed      = ":warning: **スコアの取得に失敗しました。**"
	messageEphemeralSessionStarted   = ":tada: **セッションを開始しました。** (ID: `%s`)"
	messageEphemeralScore            = ":star: **現在のおすすめスコア: %.1f**"
)

func giveCapReached(limit int) string {
	return fmt.Sprintf(messageEphemeralGiveCapReached, limit)
}

func giveCooldown(until time.Time) string {
	return fmt.Sprintf(messageEphemeralGiveCooldown, until.Unix())
}

func pingCooldown(until time.Time) string {
	return fmt.Sprintf(messageEphemeralPingCooldown, until.Unix())
}

func removed(userID, reason string) string {
	return fmt.Sprintf(messageEphemeralRemovedFormat, userID, reason)
}

func recommended(given, limit int) string {
	return messageEphemeralRecommended + "\n" + fmt.Sprintf(messageEphemeralRecommendedCount, given, limit)
}

func sessionStarted(id string) string {
	return fmt.Sprintf(messageEphemeralSessionStarted, id)
}

func recommendationScore(score float64) string {
	return fmt.Sprintf(messageEphemeralScore, score)
}
