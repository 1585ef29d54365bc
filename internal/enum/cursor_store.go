package enum

type CursorStore string

const (
	CursorStoreMemory   CursorStore = "memory"
	CursorStorePostgres CursorStore = "postgres"
)

func (s CursorStore) String() string {
	return string(s)
}

func GetCursorStore(s string) CursorStore {
	return CursorStore(s)
}
