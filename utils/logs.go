package utils

import (
	"fmt"
	"log"
)

var protocolLog bool
var orchLog bool

func InitLog(protocol, orch bool) {
	protocolLog = protocol
	orchLog = orch
}

func ProtocolLog(role string, format string, v ...any) {
	if protocolLog {
		log.Printf("INFO %s: %s", role, fmt.Sprintf(format, v...))
	}
}

func OrchLog(format string, v ...any) {
	if orchLog {
		log.Printf("INFO Orchestrator: %s", fmt.Sprintf(format, v...))
	}
}

func WarnLog(format string, v ...any) {
	log.Printf("WARN: %s", fmt.Sprintf(format, v...))
}
