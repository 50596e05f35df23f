package models

// The types below mirror tables owned by the LuckPerms, Plan and SkinRestorer
// plugins. They are read-only here; production never migrates them.

type LuckPermsPlayer struct {
	UUID         string `gorm:"column:uuid;primaryKey;size:36"`
	Username     string `gorm:"column:username;index;size:16"`
	PrimaryGroup string `gorm:"column:primary_group;size:36"`
}

func (LuckPermsPlayer) TableName() string { return "luckperms_players" }

type LuckPermsUserPermission struct {
	ID         uint   `gorm:"column:id;primaryKey"`
	UUID       string `gorm:"column:uuid;index;size:36"`
	Permission string `gorm:"column:permission;size:200"`
	Value      bool   `gorm:"column:value;default:true"`
	Server     string `gorm:"column:server;size:36;default:'global'"`
	World      string `gorm:"column:world;size:64;default:'global'"`
	Expiry     int64  `gorm:"column:expiry;default:0"`
	Contexts   string `gorm:"column:contexts;size:200;default:'{}'"`
}

func (LuckPermsUserPermission) TableName() string { return "luckperms_user_permissions" }

type PlanUser struct {
	ID         uint   `gorm:"column:id;primaryKey"`
	UUID       string `gorm:"column:uuid;uniqueIndex;size:36"`
	Name       string `gorm:"column:name;size:36"`
	Registered int64  `gorm:"column:registered"` // epoch ms
}

func (PlanUser) TableName() string { return "plan_users" }

// PlanSession is open while SessionEnd is nil.
type PlanSession struct {
	ID           uint   `gorm:"column:id;primaryKey"`
	UserID       uint   `gorm:"column:user_id;index"`
	SessionStart int64  `gorm:"column:session_start"`
	SessionEnd   *int64 `gorm:"column:session_end"`
}

func (PlanSession) TableName() string { return "plan_sessions" }

type SkinRestorerPlayer struct {
	UUID           string `gorm:"column:uuid;primaryKey;size:36"`
	SkinIdentifier string `gorm:"column:skin_identifier"`
}

func (SkinRestorerPlayer) TableName() string { return "sr_players" }

// PluginTables lists the plugin models, for seeding test databases.
var PluginTables = []interface{}{
	&LuckPermsPlayer{},
	&LuckPermsUserPermission{},
	&PlanUser{},
	&PlanSession{},
	&SkinRestorerPlayer{},
}
