package watch

import "github.com/fsnotify/fsnotify"

func fsnotifyEvent(name, op string) fsnotify.Event {
	ops := map[string]fsnotify.Op{
		"create": fsnotify.Create,
		"write":  fsnotify.Write,
		"remove": fsnotify.Remove,
		"rename": fsnotify.Rename,
	}
	return fsnotify.Event{Name: name, Op: ops[op]}
}
