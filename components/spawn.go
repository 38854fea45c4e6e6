package components

// EnemySpec describes one enemy to spawn. Wave generators produce these and
// the battle turns them into entities.
type EnemySpec struct {
	Template  string
	Name      string
	HP        float64
	Damage    float64
	Speed     float64
	Scrap     int
	Boss      bool
	Intents   []IntentWeight
	Affix     *Affix
	WeakPoint *WeakPoint
}
