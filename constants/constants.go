package constants

const (
	// JudgeTaskKey 判题任务的 redis stream
	JudgeTaskKey = "oj:judge:task"
	// JudgeTaskField stream 消息中存放 proto 编码任务的字段
	JudgeTaskField = "task"
)
