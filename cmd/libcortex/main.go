package main

/*
#include <stdlib.h>

// topic names the event, payload is JSON.
typedef void (*EventCallback)(char* topic, char* payload);

static void invokeCallback(EventCallback cb, char* topic, char* payload) {
    if (cb) {
        cb(topic, payload);
    }
}
*/
import "C"
import (
	"encoding/json"
	"sync"
	"unsafe"

	"github.com/dyike/CortexFolio/internal/logger"
	"github.com/dyike/CortexFolio/internal/service"
	"github.com/dyike/CortexFolio/pkg/bridge"
)

var (
	globalCallback C.EventCallback

	mu  sync.Mutex
	svc *service.Service
)

func init() {
	bridge.SetNotifyImpl(func(topic, payload string) {
		if globalCallback == nil {
			return
		}
		cTopic := C.CString(topic)
		cPayload := C.CString(payload)
		defer C.free(unsafe.Pointer(cTopic))
		defer C.free(unsafe.Pointer(cPayload))

		C.invokeCallback(globalCallback, cTopic, cPayload)
	})
}

// InitSDK opens the engine rooted at workDir. Calling it again replaces
// the running instance.
//
//export InitSDK
func InitSDK(workDir *C.char, configJson *C.char) *C.char {
	dir := C.GoString(workDir)
	cfg := C.GoString(configJson)

	s, err := service.Open(dir, cfg, logger.New(logger.Config{Level: "info"}))
	if err != nil {
		return C.CString("Error: " + err.Error())
	}

	mu.Lock()
	old := svc
	svc = s
	mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return C.CString("Success")
}

//export RegisterCallback
func RegisterCallback(cb C.EventCallback) {
	globalCallback = cb
}

//export UpdateConfig
func UpdateConfig(jsonStr *C.char) *C.char {
	s := current()
	if s == nil {
		return C.CString("Error: sdk is not initialized")
	}
	if _, err := s.UpdateConfig(C.GoString(jsonStr)); err != nil {
		return C.CString("Error: " + err.Error())
	}
	return C.CString("Success")
}

//export Call
func Call(method *C.char, params *C.char) *C.char {
	s := current()
	if s == nil {
		b, _ := json.Marshal(service.Response{Code: 503, Msg: "sdk is not initialized"})
		return C.CString(string(b))
	}
	return C.CString(s.Dispatch(C.GoString(method), C.GoString(params)))
}

//export Shutdown
func Shutdown() {
	mu.Lock()
	s := svc
	svc = nil
	mu.Unlock()
	if s != nil {
		_ = s.Close()
	}
}

//export FreeString
func FreeString(str *C.char) {
	C.free(unsafe.Pointer(str))
}

func current() *service.Service {
	mu.Lock()
	defer mu.Unlock()
	return svc
}

func main() {}
