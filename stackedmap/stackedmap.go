// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package stackedmap implements a stack of recording frames.
// Each frame keeps, per key, the value to restore when the frame is reverted.
package stackedmap

// StackedMap maintains recording frames in a stack.
// A key is recorded at most once per frame, so a frame holds the oldest value seen since it was pushed.
type StackedMap[K comparable, V any] struct {
	frames []map[K]V
}

// New create an instance of StackedMap.
func New[K comparable, V any]() *StackedMap[K, V] {
	return &StackedMap[K, V]{}
}

// Depth returns depth of stack.
func (sm *StackedMap[K, V]) Depth() int {
	return len(sm.frames)
}

// Push pushes an empty frame on stack.
// It returns stack depth before push.
func (sm *StackedMap[K, V]) Push() int {
	sm.frames = append(sm.frames, make(map[K]V))
	return len(sm.frames) - 1
}

// Record stores the value produced by fn into the top frame, unless the key was already recorded there.
// fn is called only when the value is actually stored. It returns false with an empty stack.
func (sm *StackedMap[K, V]) Record(key K, fn func() V) bool {
	if len(sm.frames) == 0 {
		return false
	}
	top := sm.frames[len(sm.frames)-1]
	if _, ok := top[key]; ok {
		return false
	}
	top[key] = fn()
	return true
}

// Recorded returns whether the key is recorded in the top frame.
func (sm *StackedMap[K, V]) Recorded(key K) bool {
	if len(sm.frames) == 0 {
		return false
	}
	_, ok := sm.frames[len(sm.frames)-1][key]
	return ok
}

// Pop removes the top frame and returns its records.
// It panics if the stack is empty.
func (sm *StackedMap[K, V]) Pop() map[K]V {
	if len(sm.frames) == 0 {
		panic("stackedmap: pop on empty stack")
	}
	top := sm.frames[len(sm.frames)-1]
	sm.frames[len(sm.frames)-1] = nil
	sm.frames = sm.frames[:len(sm.frames)-1]
	return top
}

// Merge removes the top frame and folds its records into the new top frame.
// Records already present in the parent are kept. Without a parent the records are dropped.
func (sm *StackedMap[K, V]) Merge() {
	top := sm.Pop()
	if len(sm.frames) == 0 {
		return
	}
	parent := sm.frames[len(sm.frames)-1]
	if len(parent) == 0 {
		sm.frames[len(sm.frames)-1] = top
		return
	}
	for k, v := range top {
		if _, ok := parent[k]; !ok {
			parent[k] = v
		}
	}
}
