package main

import (
	"fmt"
	"os"

	_ "stack-keeper/cmd"
	"stack-keeper/cmd/root"
)

func main() {
	if err := root.RootCmd.Execute(); err != nil {
		// 日志已在命令内关闭，这里直接输出到标准错误
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	os.Exit(0)
}
