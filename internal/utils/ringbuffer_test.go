package utils

import "testing"

func TestRingBufferBasic(t *testing.T) {
	rb := NewRingBuffer[int](4)
	if rb.Len() != 0 {
		t.Fatalf("初始长度 = %d", rb.Len())
	}

	rb.Push(1)
	rb.Push(2)
	rb.Push(3)

	got := rb.GetAll()
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("GetAll = %v", got)
	}
}

func TestRingBufferOverwrite(t *testing.T) {
	rb := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		rb.Push(i)
	}

	if rb.Len() != 3 {
		t.Fatalf("覆盖后长度 = %d", rb.Len())
	}
	got := rb.GetAll()
	want := []int{3, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("GetAll = %v, want %v", got, want)
		}
	}
}

func TestRingBufferGetLast(t *testing.T) {
	rb := NewRingBuffer[int](5)
	for i := 1; i <= 4; i++ {
		rb.Push(i)
	}

	got := rb.GetLast(2)
	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Errorf("GetLast(2) = %v", got)
	}

	// 超过当前数量时取全部
	if got := rb.GetLast(10); len(got) != 4 {
		t.Errorf("GetLast(10) = %v", got)
	}
	if got := rb.GetLast(0); got != nil {
		t.Errorf("GetLast(0) = %v", got)
	}
}

func TestRingBufferClear(t *testing.T) {
	rb := NewRingBuffer[string](3)
	rb.Push("a")
	rb.Push("b")
	rb.Clear()

	if rb.Len() != 0 || len(rb.GetAll()) != 0 {
		t.Errorf("清空后仍有数据: %v", rb.GetAll())
	}

	rb.Push("c")
	got := rb.GetAll()
	if len(got) != 1 || got[0] != "c" {
		t.Errorf("清空后复用失败: %v", got)
	}
}
