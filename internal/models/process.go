package models

// ServiceState 服务控制器状态
type ServiceState string

const (
	// 尚未做过一次性初始化
	StateUninitialized ServiceState = "uninitialized"
	// 正在执行初始化动作
	StateInitializing ServiceState = "initializing"
	// 已初始化，但进程未运行
	StateInitialized ServiceState = "initialized"
	// 已启动进程，等待就绪
	StateStarting ServiceState = "starting"
	// 运行中
	StateRunning ServiceState = "running"
	// 终态：失败，本次运行不再重试
	StateFailed ServiceState = "failed"
)
