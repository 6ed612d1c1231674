package main

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine"
	"github.com/Carmen-Shannon/oxy-deferred/engine/game_object"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/chewxy/math32"
)

var palette = [][3]float32{
	{1, 0.35, 0.3},
	{0.3, 1, 0.45},
	{0.35, 0.5, 1},
	{1, 0.85, 0.3},
	{0.9, 0.4, 1},
	{0.3, 0.95, 1},
}

// frameStep is the simulated time between snapshot frames.
const frameStep = float32(1) / 60

// populate fills the engine's scene with a floor, a 3x3 grid of spinning cubes and a ring
// of colored point lights. The center cube carries a white light above it.
func populate(e engine.Engine, lights int) ([]game_object.GameObject, error) {
	dev := e.Device()
	floorMesh, err := model.NewMesh(dev, model.Plane(16, 4))
	if err != nil {
		return nil, err
	}
	cubeMesh, err := model.NewMesh(dev, model.Cube(1.5))
	if err != nil {
		return nil, err
	}

	floor := model.NewModel(model.WithName("floor"),
		model.WithPrimitive(floorMesh, material.NewMaterial(material.WithName("floor"), material.WithBaseColor([4]float32{0.8, 0.8, 0.8, 1}))))
	if _, err := e.Scene().AddNode(floor, scene.WithNodeName("floor")); err != nil {
		return nil, err
	}

	objects := make([]game_object.GameObject, 0, 9)
	for i := range 9 {
		c := palette[i%len(palette)]
		mat := material.NewMaterial(material.WithName(fmt.Sprintf("cube-%d", i)), material.WithBaseColor([4]float32{c[0], c[1], c[2], 1}))
		cube := model.NewModel(model.WithName("cube"), model.WithPrimitive(cubeMesh, mat))
		t := model.IdentityTransform()
		t.Translation = [3]float32{float32(i%3-1) * 4, 0.75, float32(i/3-1) * 4}
		t.Rotation[1] = float32(i) * 0.3
		node, err := e.Scene().AddNode(cube, scene.WithNodeName(fmt.Sprintf("cube-%d", i)), scene.WithTransform(t))
		if err != nil {
			return nil, err
		}
		options := []game_object.GameObjectBuilderOption{game_object.WithRotationSpeed(0, 0.4+0.1*float32(i), 0)}
		if i == 4 {
			lamp := light.NewLight(light.LightTypePoint, light.WithIntensity(1.5), light.WithRange(5))
			e.Scene().AddLight(lamp)
			options = append(options, game_object.WithLight(lamp, [3]float32{0, 2, 0}))
		}
		objects = append(objects, game_object.NewGameObject(node, options...))
	}

	for i := range lights {
		angle := 2 * math32.Pi * float32(i) / float32(max(lights, 1))
		c := palette[i%len(palette)]
		e.Scene().AddLight(light.NewLight(light.LightTypePoint,
			light.WithPosition(6*math32.Cos(angle), 2, 6*math32.Sin(angle)),
			light.WithColor(c[0], c[1], c[2]),
			light.WithIntensity(2),
			light.WithRange(8),
		))
	}
	return objects, nil
}
