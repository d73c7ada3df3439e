package cmd

import (
	_ "stack-keeper/cmd/logs"
	_ "stack-keeper/cmd/root"
	_ "stack-keeper/cmd/status"
)
