// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	testutil.AssertSceneCodes(t, []string{"HUMOR_JOKE"}, candidates)
// =============================================================================
package testutil

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/BaSui01/sceneflow/narrative/scene"
	"github.com/BaSui01/sceneflow/types"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertSceneCodes 断言场景列表的代码顺序
func AssertSceneCodes(t *testing.T, expected []string, actual []*scene.Scene) {
	t.Helper()

	got := SceneCodes(actual)
	if !reflect.DeepEqual(expected, got) {
		t.Errorf("scene codes mismatch:\nexpected: %v\nactual:   %v", expected, got)
	}
}

// AssertErrorCode 断言错误携带指定的错误码
func AssertErrorCode(t *testing.T, err error, code types.ErrorCode) {
	t.Helper()

	if err == nil {
		t.Errorf("expected error with code %s, got nil", code)
		return
	}
	if got := types.GetErrorCode(err); got != code {
		t.Errorf("error code mismatch: expected %s, got %s (%v)", code, got, err)
	}
}

// SceneCodes 提取场景代码
func SceneCodes(scenes []*scene.Scene) []string {
	out := make([]string, len(scenes))
	for i, s := range scenes {
		out[i] = s.Code
	}
	return out
}
