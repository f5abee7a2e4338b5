package onebot

import "testing"

func TestHandleAPIResponse(t *testing.T) {
	c := &Client{}

	ch := make(chan *APIResponse, 1)
	c.pendingReqs.Store("7", ch)
	c.handleAPIResponse(map[string]any{"status": "ok", "retcode": float64(0), "echo": "7"}, "7")

	select {
	case resp := <-ch:
		if resp.Status != "ok" || resp.RetCode != 0 {
			t.Errorf("响应解析错误: %+v", resp)
		}
	default:
		t.Fatal("响应未投递到等待通道")
	}
}

func TestHandleAPIResponseAfterCallerGone(t *testing.T) {
	c := &Client{}

	// 调用方已超时离场：通道还在表里但无人接收，
	// 带缓冲的投递不阻塞也不 panic
	ch := make(chan *APIResponse, 1)
	c.pendingReqs.Store("8", ch)
	c.handleAPIResponse(map[string]any{"status": "ok"}, "8")
	c.handleAPIResponse(map[string]any{"status": "ok"}, "8")

	// 已摘除的 echo 直接丢弃
	c.pendingReqs.Delete("8")
	c.handleAPIResponse(map[string]any{"status": "ok"}, "8")
}
