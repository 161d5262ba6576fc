package feature

import (
	"reflect"
	"testing"
)

func TestVocabulary_ID(t *testing.T) {
	v := NewVocabulary([]string{"ヘッドレスト付き", "肘掛け付き", "キャスター付き"})

	if v.Len() != 3 {
		t.Fatalf("expected len 3, got %d", v.Len())
	}

	id, ok := v.ID("ヘッドレスト付き")
	if !ok || id != 1 {
		t.Errorf("expected (1, true), got (%d, %v)", id, ok)
	}
	id, ok = v.ID("キャスター付き")
	if !ok || id != 3 {
		t.Errorf("expected (3, true), got (%d, %v)", id, ok)
	}
	if _, ok := v.ID("存在しない"); ok {
		t.Error("unknown label must not resolve")
	}
}

func TestVocabulary_IDs(t *testing.T) {
	v := NewVocabulary([]string{"最上階", "防犯カメラ", "ワンルーム"})

	tests := []struct {
		name   string
		labels []string
		want   []int64
		ok     bool
	}{
		{"all known", []string{"防犯カメラ", "最上階"}, []int64{2, 1}, true},
		{"one unknown", []string{"最上階", "地下要塞"}, nil, false},
		{"empty", nil, nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := v.IDs(tc.labels)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("expected ids %v, got %v", tc.want, got)
			}
		})
	}
}
